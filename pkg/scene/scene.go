package scene

import (
	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/geometry"
	"github.com/df07/go-resampling-bdpt/pkg/material"
)

// Scene contains all the elements needed for rendering. It is immutable
// once built and safe for concurrent use.
type Scene struct {
	Camera  *geometry.Camera
	Spheres []*geometry.Sphere

	bvh    *geometry.BVH
	lights *core.Distribution[*geometry.Sphere] // emitters weighted by luminance(Me)·area
}

// LightSample is a point sampled on an emitter
type LightSample struct {
	Point    core.Vec3
	Normal   core.Vec3 // outward
	Material material.Material
	PDF      float64 // area density, including emitter selection
}

// NewScene creates a scene and its power-weighted light distribution
func NewScene(camera *geometry.Camera, spheres ...*geometry.Sphere) *Scene {
	return &Scene{
		Camera:  camera,
		Spheres: spheres,
		bvh:     geometry.NewBVH(spheres),
		lights:  core.NewDistribution(spheres, lightPower),
	}
}

func lightPower(s *geometry.Sphere) float64 {
	if !s.Material.IsEmissive() {
		return 0
	}
	return s.Material.Emission().Luminance() * s.Area()
}

// HasLights reports whether any emitter carries positive power
func (s *Scene) HasLights() bool {
	return s.lights.NormalizationConstant() > 0
}

// Intersect finds the nearest hit along the ray and shrinks ray.TMax to it
func (s *Scene) Intersect(ray *core.Ray) (geometry.HitRecord, bool) {
	return s.bvh.Hit(ray)
}

// Occluded reports whether anything blocks the segment from origin along the
// unit direction w for the given distance, shortened to avoid hitting the endpoint
func (s *Scene) Occluded(origin, w core.Vec3, distance float64) bool {
	return s.bvh.Occludes(core.NewSegment(origin, w, distance))
}

// SampleLight picks an emitter proportionally to its power and a uniform point on it
func (s *Scene) SampleLight(sampler core.Sampler) (LightSample, bool) {
	pick, ok := s.lights.Sample(sampler)
	if !ok {
		return LightSample{}, false
	}
	point, normal, areaPDF := pick.Value.SampleSurface(sampler.Get2D())
	return LightSample{
		Point:    point,
		Normal:   normal,
		Material: pick.Value.Material,
		PDF:      pick.PMF * areaPDF,
	}, true
}

// LightPDF returns the area density SampleLight assigns to a point on an
// emitter with material m: luminance(Me) / total power
func (s *Scene) LightPDF(m material.Material) float64 {
	total := s.lights.NormalizationConstant()
	if total <= 0 || !m.IsEmissive() {
		return 0
	}
	return m.Emission().Luminance() / total
}
