package geometry

import (
	"math"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/material"
)

// Sphere represents a sphere shape
type Sphere struct {
	Center   core.Vec3
	Radius   float64
	Material material.Material
}

// NewSphere creates a new sphere
func NewSphere(center core.Vec3, radius float64, material material.Material) *Sphere {
	return &Sphere{
		Center:   center,
		Radius:   radius,
		Material: material,
	}
}

// Hit tests if a ray intersects with the sphere inside (ray.TMin, ray.TMax).
// On a hit, ray.TMax is shrunk to the hit distance.
func (s *Sphere) Hit(ray *core.Ray) (HitRecord, bool) {
	root, ok := s.intersect(*ray)
	if !ok {
		return HitRecord{}, false
	}
	ray.TMax = root

	hitRecord := HitRecord{
		T:        root,
		Point:    ray.At(root),
		Material: s.Material,
	}

	// Calculate outward normal (from center to hit point)
	outwardNormal := hitRecord.Point.Subtract(s.Center).Multiply(1.0 / s.Radius)
	hitRecord.SetFaceNormal(*ray, outwardNormal)

	return hitRecord, true
}

// Occludes reports whether the sphere blocks the ray inside its range
func (s *Sphere) Occludes(ray core.Ray) bool {
	_, ok := s.intersect(ray)
	return ok
}

func (s *Sphere) intersect(ray core.Ray) (float64, bool) {
	// Vector from ray origin to sphere center
	oc := ray.Origin.Subtract(s.Center)

	// Quadratic equation coefficients: at² + bt + c = 0
	a := ray.Direction.Dot(ray.Direction)
	halfB := oc.Dot(ray.Direction)
	c := oc.Dot(oc) - s.Radius*s.Radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return 0, false
	}
	sqrtD := math.Sqrt(discriminant)

	// Try the closer intersection point first
	root := (-halfB - sqrtD) / a
	if root <= ray.TMin || root >= ray.TMax {
		root = (-halfB + sqrtD) / a
		if root <= ray.TMin || root >= ray.TMax {
			return 0, false
		}
	}
	return root, true
}

// Area returns the surface area
func (s *Sphere) Area() float64 {
	return 4 * math.Pi * s.Radius * s.Radius
}

// SampleSurface returns a uniformly distributed surface point, its outward
// normal and the area density 1/area
func (s *Sphere) SampleSurface(sample core.Vec2) (core.Vec3, core.Vec3, float64) {
	normal := core.SampleUniformSphere(sample)
	return s.Center.Add(normal.Multiply(s.Radius)), normal, 1 / s.Area()
}

// BoundingBox returns the axis-aligned box enclosing the sphere
func (s *Sphere) BoundingBox() core.AABB {
	r := core.NewVec3(s.Radius, s.Radius, s.Radius)
	return core.NewAABB(s.Center.Subtract(r), s.Center.Add(r))
}
