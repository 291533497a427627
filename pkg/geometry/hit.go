package geometry

import (
	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/material"
)

// HitRecord contains information about a ray-object intersection
type HitRecord struct {
	Point     core.Vec3
	Normal    core.Vec3 // always faces the ray origin
	T         float64
	FrontFace bool
	Material  material.Material
}

// SetFaceNormal orients the normal against the incoming ray
func (h *HitRecord) SetFaceNormal(ray core.Ray, outwardNormal core.Vec3) {
	h.FrontFace = ray.Direction.Dot(outwardNormal) < 0
	if h.FrontFace {
		h.Normal = outwardNormal
	} else {
		h.Normal = outwardNormal.Negate()
	}
}
