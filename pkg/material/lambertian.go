package material

import "github.com/df07/go-resampling-bdpt/pkg/core"

// Lambertian represents a perfectly diffuse material
type Lambertian struct {
	Albedo core.Vec3
}

// NewLambertian creates a new lambertian material
func NewLambertian(albedo core.Vec3) *Lambertian {
	return &Lambertian{Albedo: albedo}
}

// BRDF returns albedo/π around the normal
func (l *Lambertian) BRDF(normal core.Vec3) BRDF {
	return NewDiffuseBRDF(l.Albedo, normal)
}

// Emission returns zero
func (l *Lambertian) Emission() core.Vec3 {
	return core.Vec3{}
}

// IsEmissive returns false
func (l *Lambertian) IsEmissive() bool {
	return false
}
