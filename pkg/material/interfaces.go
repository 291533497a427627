package material

import "github.com/df07/go-resampling-bdpt/pkg/core"

// Material describes the surface at an intersection
type Material interface {
	// BRDF returns the scattering function at a point with the given unit normal.
	// Emissive materials return their emission profile instead.
	BRDF(normal core.Vec3) BRDF

	// Emission returns the radiant exitance Me, zero for non-emitters
	Emission() core.Vec3

	// IsEmissive reports whether the surface emits light
	IsEmissive() bool
}
