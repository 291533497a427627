package integrator

import (
	"math"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/material"
	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

// sentinel stands in for the light side of s=0 strategies
var sentinel = LightVertex{Vertex: Vertex{Kind: LightSentinel, Throughput: core.NewVec3(1, 1, 1)}}

// CameraPath is a camera sub-path; vertex 0 is the lens
type CameraPath struct {
	vertices []CameraVertex
}

// Len returns the number of vertices including the lens vertex
func (p *CameraPath) Len() int {
	return len(p.vertices)
}

// At returns vertex i, with 0 the lens vertex
func (p *CameraPath) At(i int) *CameraVertex {
	return &p.vertices[i]
}

// Lens returns the lens vertex
func (p *CameraPath) Lens() *CameraVertex {
	return &p.vertices[0]
}

// LightPath is a light sub-path preceded by a sentinel: At(-1) is the
// sentinel and At(0) the vertex on the emitter
type LightPath struct {
	vertices []LightVertex
}

// Len returns the number of real vertices, excluding the sentinel
func (p *LightPath) Len() int {
	return max(0, len(p.vertices)-1)
}

// At returns vertex i, with -1 the sentinel
func (p *LightPath) At(i int) *LightVertex {
	return &p.vertices[i+1]
}

func (p *LightPath) reset() {
	p.vertices = append(p.vertices[:0], sentinel)
}

// PathBuilder traces and annotates sub-paths in a scene against the cache
// set of the previous iteration (nil on the first iteration)
type PathBuilder struct {
	Scene  *scene.Scene
	Caches *CacheSet
}

// BuildCamera traces and annotates the camera path of pixel (x, y)
func (b *PathBuilder) BuildCamera(path *CameraPath, x, y int, sampler core.Sampler, scratch *Scratch) {
	b.TraceCamera(path, x, y, sampler)
	b.AnnotateCamera(path, scratch)
}

// BuildLight traces and annotates one light path
func (b *PathBuilder) BuildLight(path *LightPath, sampler core.Sampler, scratch *Scratch) {
	b.TraceLight(path, sampler)
	b.AnnotateLight(path, scratch)
}

// TraceCamera performs the forward random walk from the lens through pixel
// (x, y). An emissive hit is recorded and ends the walk.
func (b *PathBuilder) TraceCamera(path *CameraPath, x, y int, sampler core.Sampler) {
	path.vertices = path.vertices[:0]
	camera := b.Scene.Camera

	ray := camera.SampleRay(x, y, sampler)
	forward := camera.Forward()
	lens := CameraVertex{Vertex: Vertex{
		Kind:       LensVertex,
		Point:      ray.Origin,
		Normal:     forward,
		Next:       core.NewDirection(ray.Direction, forward),
		Throughput: core.NewVec3(1, 1, 1),
		PdfForward: camera.LensPDF(),
	}}
	path.vertices = append(path.vertices, lens)
	if !lens.Next.UpperHemisphere() {
		return
	}

	pdf := camera.DirectionPDF(lens.Next)
	throughput := core.NewVec3(1, 1, 1)
	for {
		hit, ok := b.Scene.Intersect(&ray)
		if !ok {
			return
		}
		prev := core.NewDirection(ray.Direction.Negate(), hit.Normal)
		if !prev.Valid() {
			return
		}
		pdf *= prev.AbsCos() / (hit.T * hit.T)

		v := CameraVertex{Vertex: Vertex{
			Kind:       SurfaceVertex,
			Point:      hit.Point,
			Normal:     hit.Normal,
			Material:   hit.Material,
			BRDF:       hit.Material.BRDF(hit.Normal),
			Prev:       prev,
			Throughput: throughput,
			PdfForward: pdf,
		}}
		if hit.Material.IsEmissive() {
			v.Next = core.NewNormalDirection(hit.Normal)
			path.vertices = append(path.vertices, v)
			return
		}

		sample := v.BRDF.Sample(sampler)
		v.Next = sample.W
		path.vertices = append(path.vertices, v)

		var survive bool
		pdf, survive = b.continuation(sample, len(path.vertices), sampler)
		if !survive {
			return
		}
		throughput = throughput.MultiplyVec(sample.F).Multiply(sample.W.AbsCos() / pdf)
		ray = core.NewRay(hit.Point, sample.W.Vec())
	}
}

// TraceLight performs the forward random walk from a power-sampled point on
// an emitter. Hitting another emitter ends the walk without recording it.
func (b *PathBuilder) TraceLight(path *LightPath, sampler core.Sampler) {
	path.reset()

	ls, ok := b.Scene.SampleLight(sampler)
	if !ok || ls.PDF <= 0 {
		return
	}
	emission := ls.Material.BRDF(ls.Normal)
	sample := emission.Sample(sampler)
	y0 := LightVertex{Vertex: Vertex{
		Kind:       SurfaceVertex,
		Point:      ls.Point,
		Normal:     ls.Normal,
		Material:   ls.Material,
		BRDF:       emission,
		Prev:       core.NewNormalDirection(ls.Normal),
		Next:       sample.W,
		Throughput: ls.Material.Emission().Multiply(1 / ls.PDF),
		PdfForward: ls.PDF,
	}}
	path.vertices = append(path.vertices, y0)

	pdf, survive := b.continuation(sample, path.Len(), sampler)
	if !survive {
		return
	}
	throughput := y0.Throughput.MultiplyVec(sample.F).Multiply(sample.W.AbsCos() / pdf)
	ray := core.NewRay(ls.Point, sample.W.Vec())
	for {
		hit, ok := b.Scene.Intersect(&ray)
		if !ok {
			return
		}
		prev := core.NewDirection(ray.Direction.Negate(), hit.Normal)
		if !prev.Valid() || hit.Material.IsEmissive() {
			return
		}
		pdf *= prev.AbsCos() / (hit.T * hit.T)

		v := LightVertex{Vertex: Vertex{
			Kind:       SurfaceVertex,
			Point:      hit.Point,
			Normal:     hit.Normal,
			Material:   hit.Material,
			BRDF:       hit.Material.BRDF(hit.Normal),
			Prev:       prev,
			Throughput: throughput,
			PdfForward: pdf,
		}}
		sample := v.BRDF.Sample(sampler)
		v.Next = sample.W
		path.vertices = append(path.vertices, v)

		pdf, survive = b.continuation(sample, path.Len(), sampler)
		if !survive {
			return
		}
		throughput = throughput.MultiplyVec(sample.F).Multiply(sample.W.AbsCos() / pdf)
		ray = core.NewRay(hit.Point, sample.W.Vec())
	}
}

// continuation decides whether the walk continues after sampling at the
// vertex that made the sub-path count vertices long, and returns the
// solid-angle density of the step including any roulette factor
func (b *PathBuilder) continuation(sample material.BRDFSample, count int, sampler core.Sampler) (float64, bool) {
	if !sample.Valid() {
		return 0, false
	}
	pdf := sample.PDF
	if count >= RussianRouletteThreshold {
		q := russianRouletteProbability(sample.F, sample.W.AbsCos(), sample.PDF)
		if q <= 0 || sampler.Get1D() >= q {
			return 0, false
		}
		pdf *= q
	}
	return pdf, true
}

// AnnotateCamera fills neighbour caches, backward pdfs and the FG/FGV memos
// of a traced camera path
func (b *PathBuilder) AnnotateCamera(path *CameraPath, scratch *Scratch) {
	n := path.Len()
	for i := 1; i < n; i++ {
		b.findCaches(&path.vertices[i].Vertex, scratch)
	}
	for i := 1; i+2 < n; i++ {
		z, next := &path.vertices[i], &path.vertices[i+1]
		f, j := b.annotateBackward(&z.Vertex, &next.Vertex)
		z.fgBackward = f.Multiply(next.Prev.AbsCos() * j)
		for c, idx := range z.Caches() {
			z.fgv[c] = b.Caches.Point(idx).CalcFGV(b.Scene, next.Point, next.Normal, next.BRDF)
		}
		z.hasFG = true
	}
}

// AnnotateLight fills neighbour caches, backward pdfs and the emitted FGV
// memos of a traced light path
func (b *PathBuilder) AnnotateLight(path *LightPath, scratch *Scratch) {
	n := path.Len()
	for i := 1; i < n; i++ {
		b.findCaches(&path.At(i).Vertex, scratch)
	}
	for i := 0; i+2 < n; i++ {
		b.annotateBackward(&path.At(i).Vertex, &path.At(i+1).Vertex)
	}
	for i := 1; i < n; i++ {
		y, prev := path.At(i), path.At(i-1)
		for c, idx := range y.Caches() {
			fgv := b.Caches.Point(idx).CalcFGV(b.Scene, prev.Point, prev.Normal, prev.BRDF)
			y.emittedFGV[c] = prev.Throughput.MultiplyVec(fgv).Luminance()
		}
		y.hasEmittedFGV = true
	}
}

// annotateBackward stores the density of reaching v by sampling at next
// toward it, and returns the BRDF value at next and the area Jacobian of the step
func (b *PathBuilder) annotateBackward(v, next *Vertex) (core.Vec3, float64) {
	w := next.Prev
	f := next.BRDF.F(w)
	pdfW := next.BRDF.PDF(w)
	j := v.Next.AbsCos() / next.Point.Subtract(v.Point).LengthSquared()
	v.setPdfBackward(pdfW*j, withRoulette(pdfW, f, w.AbsCos(), true)*j)
	return f, j
}

func (b *PathBuilder) findCaches(v *Vertex, scratch *Scratch) {
	v.numCaches = 0
	if b.Caches.Len() == 0 {
		return
	}
	scratch.neighbors = b.Caches.Nearest(v.Point, NumNearestCaches, math.Inf(1), scratch.neighbors)
	for _, nb := range scratch.neighbors {
		v.caches[v.numCaches] = nb.Value
		v.numCaches++
	}
}
