package integrator

import (
	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

// WeightEngine evaluates the multiple-importance weights of one iteration.
//
// For a path of s light and t camera vertices, a weight is the strategy's own
// sample count divided by the sum over every strategy producing the same path
// of its count times its pdf relative to the current one. Path tracing has
// count 1, light tracing one sample per pixel, and resampled connections an
// effective count derived from the Q estimates of the cache points around
// their camera endpoint.
type WeightEngine struct {
	Scene      *scene.Scene
	Caches     *CacheSet // previous iteration, nil on the first
	Candidates int       // M, light paths in the candidate pool
	VirtualQ   float64   // Qp, stands in for an unknown cache point
	Strategies Strategies
}

func (e *WeightEngine) lightTracingCount() float64 {
	if !e.Strategies.LightTracing {
		return 0
	}
	return float64(e.Scene.Camera.PixelCount())
}

// resampledCount returns the effective sample count of a resampled strategy
// whose camera endpoint has the given neighbour caches, where l[j] is the
// unnormalized target luminance of the connection as seen by cache j
func (e *WeightEngine) resampledCount(caches []int32, l *[NumNearestCaches]float64) float64 {
	if !e.Strategies.Resampling {
		return 0
	}
	m := float64(e.Candidates)
	share := 1 / float64(len(caches)+1)
	count := share * m / ((m-1)*e.VirtualQ + 1)
	for j, idx := range caches {
		if l[j] == 0 {
			continue
		}
		q := e.Caches.Point(idx).Q
		count += share * m / ((m-1)*max(ResampleClamp, q/l[j]) + 1)
	}
	return count
}

// lightPartialWeight sums the relative counts of the strategies that take
// fewer light vertices than s, when light vertex s-1 connects to camera
// vertex t-1 (z) along yz (measured at the light vertex) and zy
func (e *WeightEngine) lightPartialWeight(y *LightPath, s int, z *CameraVertex, t int, yz, zy core.Direction) float64 {
	w := 0.0
	var l [NumNearestCaches]float64
	for i := 0; i < s; i++ {
		yi := y.At(i)
		if i == 0 {
			w += 1
		} else {
			for j := range yi.Caches() {
				l[j] = yi.EmittedFGV(j)
			}
			w += e.resampledCount(yi.Caches(), &l)
		}

		n := s - i + t
		var pdf float64
		switch i {
		case s - 1:
			pdf = e.pdfFromCameraEnd(yi, z, n, yz, zy)
		case s - 2:
			pdf = pdfFromLightEnd(yi, y.At(s-1), n)
		default:
			pdf = yi.PdfBackward(n > RussianRouletteThreshold)
		}
		w *= pdf / yi.PdfForward
	}
	return w
}

// cameraPartialWeight sums the relative counts of the strategies that take
// fewer camera vertices than t. The throughput reaching each camera vertex
// from the light side is carried down the path, so the loop runs from the
// connection toward the lens and keeps the per-vertex terms on a stack.
func (e *WeightEngine) cameraPartialWeight(ysm1 *LightVertex, s int, z *CameraPath, t int, yz, zy core.Direction, scratch *Scratch) float64 {
	if t < 2 {
		return 0
	}
	ztm1 := z.At(t - 1)
	pdf, fg := e.pdfFGFromLight(ztm1, ysm1, s+1, yz, zy)
	if pdf <= 0 {
		return 0
	}
	throughput := ysm1.Throughput.MultiplyVec(fg).Multiply(1 / pdf)

	pdfs, counts := scratch.stack(t)
	var l [NumNearestCaches]float64
	for i := t - 1; i >= 1; i-- {
		pdfs[i] = pdf
		if i == 1 {
			counts[1] = e.lightTracingCount()
			break
		}

		zim1 := z.At(i - 1)
		var fgPrev core.Vec3
		if i == t-1 {
			var fgv [NumNearestCaches]core.Vec3
			pdf, fgPrev = e.pdfFGFromCameraEnd(zim1, ztm1, s+2, &fgv)
			for j := range zim1.Caches() {
				l[j] = throughput.MultiplyVec(fgv[j]).Luminance()
			}
		} else {
			pdf = zim1.PdfBackward(s+t-i+1 > RussianRouletteThreshold)
			fgPrev = zim1.FGBackward()
			for j := range zim1.Caches() {
				l[j] = throughput.MultiplyVec(zim1.FGV(j)).Luminance()
			}
		}
		counts[i] = e.resampledCount(zim1.Caches(), &l)

		if pdf <= 0 {
			for k := 1; k < i; k++ {
				pdfs[k], counts[k] = 0, 0
			}
			break
		}
		throughput = throughput.MultiplyVec(fgPrev).Multiply(1 / pdf)
	}

	w := 0.0
	for i := 1; i < t; i++ {
		w += counts[i]
		w *= pdfs[i] / z.At(i).PdfForward
	}
	return w
}

// pdfFGFromLight returns the area density of reaching camera endpoint ztm1
// from light endpoint ysm1, together with f·|cos|·|cos|/d² of that step.
// With the sentinel as light endpoint ztm1 lies on an emitter and the values
// are those of light sampling.
func (e *WeightEngine) pdfFGFromLight(ztm1 *CameraVertex, ysm1 *LightVertex, n int, yz, zy core.Direction) (float64, core.Vec3) {
	if ysm1.Kind == LightSentinel {
		return e.Scene.LightPDF(ztm1.Material), ztm1.Material.Emission()
	}
	f := ysm1.BRDF.F(yz)
	pdfW := withRoulette(ysm1.BRDF.PDF(yz), f, yz.AbsCos(), n > RussianRouletteThreshold)
	j := zy.AbsCos() / ztm1.Point.Subtract(ysm1.Point).LengthSquared()
	return pdfW * j, f.Multiply(yz.AbsCos() * j)
}

// pdfFGFromCameraEnd is the backward step from camera endpoint ztm1 to its
// predecessor ztm2, also filling the FGV of ztm2's neighbour caches seen from ztm1
func (e *WeightEngine) pdfFGFromCameraEnd(ztm2, ztm1 *CameraVertex, n int, fgv *[NumNearestCaches]core.Vec3) (float64, core.Vec3) {
	w := ztm1.Prev
	f := ztm1.BRDF.F(w)
	pdfW := withRoulette(ztm1.BRDF.PDF(w), f, w.AbsCos(), n > RussianRouletteThreshold)
	j := ztm2.Next.AbsCos() / ztm1.Point.Subtract(ztm2.Point).LengthSquared()
	for c, idx := range ztm2.Caches() {
		fgv[c] = e.Caches.Point(idx).CalcFGV(e.Scene, ztm1.Point, ztm1.Normal, ztm1.BRDF)
	}
	return pdfW * j, f.Multiply(w.AbsCos() * j)
}

// pdfFromCameraEnd returns the area density of reaching light endpoint ysm1
// by sampling at camera endpoint ztm1 along zy
func (e *WeightEngine) pdfFromCameraEnd(ysm1 *LightVertex, ztm1 *CameraVertex, n int, yz, zy core.Direction) float64 {
	var pdfW float64
	if ztm1.Kind == LensVertex {
		pdfW = e.Scene.Camera.DirectionPDF(zy)
	} else {
		pdfW = withRoulette(ztm1.BRDF.PDF(zy), ztm1.BRDF.F(zy), zy.AbsCos(), n > RussianRouletteThreshold)
	}
	return pdfW * yz.AbsCos() / ztm1.Point.Subtract(ysm1.Point).LengthSquared()
}

// pdfFromLightEnd returns the area density of reaching ysm2 by sampling at
// light endpoint ysm1 back toward it
func pdfFromLightEnd(ysm2, ysm1 *LightVertex, n int) float64 {
	w := ysm1.Prev
	pdfW := withRoulette(ysm1.BRDF.PDF(w), ysm1.BRDF.F(w), w.AbsCos(), n > RussianRouletteThreshold)
	return pdfW * ysm2.Next.AbsCos() / ysm1.Point.Subtract(ysm2.Point).LengthSquared()
}
