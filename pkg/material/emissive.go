package material

import "github.com/df07/go-resampling-bdpt/pkg/core"

// Emissive represents a diffuse light-emitting material with radiant exitance Me
type Emissive struct {
	Exitance core.Vec3
}

// NewEmissive creates a new emissive material
func NewEmissive(exitance core.Vec3) *Emissive {
	return &Emissive{Exitance: exitance}
}

// BRDF returns the cosine emission profile: a unit-albedo diffuse lobe, so
// that Me·F(w) is the emitted radiance and Sample draws emission directions
func (e *Emissive) BRDF(normal core.Vec3) BRDF {
	return NewDiffuseBRDF(core.NewVec3(1, 1, 1), normal)
}

// Emission returns the radiant exitance
func (e *Emissive) Emission() core.Vec3 {
	return e.Exitance
}

// IsEmissive returns true
func (e *Emissive) IsEmissive() bool {
	return true
}
