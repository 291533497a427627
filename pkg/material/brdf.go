package material

import (
	"math"

	"github.com/df07/go-resampling-bdpt/pkg/core"
)

// BRDF is an evaluated diffuse reflectance at a surface point.
// F, Sample and PDF are mutually consistent: cosine-weighted sampling of kd/π.
type BRDF struct {
	f      core.Vec3 // kd / π
	normal core.Vec3
}

// NewDiffuseBRDF creates a diffuse BRDF with reflectance kd around the unit normal
func NewDiffuseBRDF(kd, normal core.Vec3) BRDF {
	return BRDF{f: kd.Multiply(1.0 / math.Pi), normal: normal}
}

// F evaluates the BRDF toward w; zero below the surface
func (b BRDF) F(w core.Direction) core.Vec3 {
	if !w.UpperHemisphere() {
		return core.Vec3{}
	}
	return b.f
}

// PDF returns the solid-angle density of sampling w
func (b BRDF) PDF(w core.Direction) float64 {
	if !w.UpperHemisphere() {
		return 0
	}
	return w.Cos() / math.Pi
}

// BRDFSample is a sampled direction with its BRDF value and density
type BRDFSample struct {
	W   core.Direction
	F   core.Vec3
	PDF float64
}

// Valid reports whether the sample can continue a path
func (s BRDFSample) Valid() bool {
	return s.W.Valid() && s.PDF > 0
}

// Sample draws a cosine-weighted direction
func (b BRDF) Sample(sampler core.Sampler) BRDFSample {
	w := core.NewDirection(core.SampleCosineHemisphere(b.normal, sampler.Get2D()), b.normal)
	return BRDFSample{W: w, F: b.F(w), PDF: b.PDF(w)}
}
