package renderer

import "github.com/df07/go-resampling-bdpt/pkg/core"

// RenderStats summarizes the accumulated estimate after a pass
type RenderStats struct {
	Passes        int       // iterations accumulated so far
	Mean          core.Vec3 // image mean of the accumulated estimate
	MeanVariance  float64   // average per-pixel luminance variance of one iteration
	MaxPixelValue float64   // largest accumulated luminance, to spot fireflies
}

// PixelStats tracks the iterations accumulated into a single pixel
type PixelStats struct {
	ColorAccum       core.Vec3 // RGB accumulator for final result
	LuminanceAccum   float64   // Luminance accumulator for convergence
	LuminanceSqAccum float64   // Luminance squared for variance
	SampleCount      int       // Number of iterations accumulated
}

// AddSample adds one iteration's estimate to the pixel statistics
func (ps *PixelStats) AddSample(color core.Vec3) {
	ps.ColorAccum = ps.ColorAccum.Add(color)
	luminance := color.Luminance()
	ps.LuminanceAccum += luminance
	ps.LuminanceSqAccum += luminance * luminance
	ps.SampleCount++
}

// GetColor returns the current average color for this pixel
func (ps *PixelStats) GetColor() core.Vec3 {
	if ps.SampleCount == 0 {
		return core.Vec3{X: 0, Y: 0, Z: 0}
	}
	return ps.ColorAccum.Multiply(1.0 / float64(ps.SampleCount))
}

// Variance returns the sample variance of the luminance of one iteration
func (ps *PixelStats) Variance() float64 {
	if ps.SampleCount < 2 {
		return 0
	}
	n := float64(ps.SampleCount)
	mean := ps.LuminanceAccum / n
	return max(0, (ps.LuminanceSqAccum-n*mean*mean)/(n-1))
}
