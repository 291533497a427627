package integrator

import (
	"math"

	"github.com/df07/go-resampling-bdpt/pkg/core"
)

// Connection is the unweighted contribution factor of joining light vertex y
// to camera vertex z, with the joining directions measured at each end
type Connection struct {
	FG core.Vec3 // f_y · f_z · G
	YZ core.Direction
	ZY core.Direction
}

// connect joins y and z by a shadow ray. It fails when either BRDF faces away
// from the other vertex or the segment is blocked.
func (e *WeightEngine) connect(y *LightVertex, z *CameraVertex) (Connection, bool) {
	d := z.Point.Subtract(y.Point)
	dist2 := d.LengthSquared()
	yz := core.NewDirection(d, y.Normal)
	zy := core.NewDirection(d.Negate(), z.Normal)
	if !yz.UpperHemisphere() || !zy.UpperHemisphere() {
		return Connection{}, false
	}
	fy := y.BRDF.F(yz)
	fz := z.BRDF.F(zy)
	if fy.IsZero() || fz.IsZero() {
		return Connection{}, false
	}
	if e.Scene.Occluded(y.Point, yz.Vec(), math.Sqrt(dist2)) {
		return Connection{}, false
	}
	g := yz.AbsCos() * zy.AbsCos() / dist2
	return Connection{FG: fy.MultiplyVec(fz).Multiply(g), YZ: yz, ZY: zy}, true
}

// PathTraced returns the weighted s=0 contribution of a camera path that
// ended on an emitter
func (e *WeightEngine) PathTraced(z *CameraPath, scratch *Scratch) core.Vec3 {
	t := z.Len()
	if t < 2 {
		return core.Vec3{}
	}
	ztm1 := z.At(t - 1)
	if !ztm1.IsEmissive() {
		return core.Vec3{}
	}
	le := ztm1.Material.Emission().MultiplyVec(ztm1.BRDF.F(ztm1.Prev))
	if le.IsZero() {
		return core.Vec3{}
	}
	wc := e.cameraPartialWeight(&sentinel, 0, z, t, core.Direction{}, core.NewNormalDirection(ztm1.Normal), scratch)
	return ztm1.Throughput.MultiplyVec(le).Multiply(1 / (1 + wc))
}

// Resampled returns the weighted contribution of camera vertex t-1 connected
// to a light vertex resampled from its cache point. The zero vector is
// returned when the cache point's distribution has no mass.
func (e *WeightEngine) Resampled(z *CameraPath, t int, cache *CachePoint, sampler core.Sampler, scratch *Scratch) core.Vec3 {
	cand, pmf, ok := cache.Sample(sampler)
	if !ok || pmf <= 0 {
		return core.Vec3{}
	}
	ztm1 := z.At(t - 1)
	ysm1 := cand.Vertex()
	s := cand.S()

	conn, ok := e.connect(ysm1, ztm1)
	if !ok {
		return core.Vec3{}
	}
	contribution := ysm1.Throughput.MultiplyVec(conn.FG).MultiplyVec(ztm1.Throughput)
	if contribution.IsZero() {
		return core.Vec3{}
	}
	estimate := contribution.Multiply(1 / (float64(e.Candidates) * pmf))

	var l [NumNearestCaches]float64
	for j, idx := range ztm1.Caches() {
		fgv := e.Caches.Point(idx).CalcFGV(e.Scene, ysm1.Point, ysm1.Normal, ysm1.BRDF)
		l[j] = ysm1.Throughput.MultiplyVec(fgv).Luminance()
	}
	own := e.resampledCount(ztm1.Caches(), &l)
	wl := e.lightPartialWeight(cand.Path, s, ztm1, t, conn.YZ, conn.ZY)
	wc := e.cameraPartialWeight(ysm1, s, z, t, conn.YZ, conn.ZY, scratch)
	total := own + wl + wc
	if own <= 0 || total <= 0 {
		return core.Vec3{}
	}
	return estimate.Multiply(own / total)
}

// LightTraced connects every vertex of y to lens and splats the weighted
// contributions onto the pixels they project to
func (e *WeightEngine) LightTraced(y *LightPath, lens *CameraVertex, splat func(x, y int, c core.Vec3)) {
	camera := e.Scene.Camera
	count := e.lightTracingCount()
	if count == 0 {
		return
	}
	for s := 1; s <= y.Len(); s++ {
		ysm1 := y.At(s - 1)
		d := lens.Point.Subtract(ysm1.Point)
		dist2 := d.LengthSquared()
		yz := core.NewDirection(d, ysm1.Normal)
		zy := core.NewDirection(d.Negate(), lens.Normal)
		if !yz.UpperHemisphere() || !zy.UpperHemisphere() {
			continue
		}
		px, py, ok := camera.PixelFor(lens.Point, zy)
		if !ok {
			continue
		}
		fy := ysm1.BRDF.F(yz)
		if fy.IsZero() || e.Scene.Occluded(ysm1.Point, yz.Vec(), math.Sqrt(dist2)) {
			continue
		}
		g := yz.AbsCos() * zy.AbsCos() / dist2
		c := ysm1.Throughput.MultiplyVec(fy).Multiply(g * camera.Importance(zy) / lens.PdfForward)
		wl := e.lightPartialWeight(y, s, lens, 1, yz, zy)
		splat(px, py, c.Multiply(count/(count+wl)))
	}
}
