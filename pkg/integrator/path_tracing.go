package integrator

import (
	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

// PathTracer is a unidirectional path tracer without next-event estimation.
// It walks exactly like the camera side of the bidirectional estimator, so
// both agree in expectation when light tracing and resampling are disabled.
type PathTracer struct {
	Scene *scene.Scene
}

// NewPathTracer creates a path tracer for the scene
func NewPathTracer(s *scene.Scene) *PathTracer {
	return &PathTracer{Scene: s}
}

// Radiance estimates the radiance reaching the lens through pixel (x, y)
func (pt *PathTracer) Radiance(x, y int, sampler core.Sampler) core.Vec3 {
	camera := pt.Scene.Camera
	ray := camera.SampleRay(x, y, sampler)
	if !core.NewDirection(ray.Direction, camera.Forward()).UpperHemisphere() {
		return core.Vec3{}
	}

	throughput := core.NewVec3(1, 1, 1)
	depth := 1 // the lens vertex
	for {
		hit, isHit := pt.Scene.Intersect(&ray)
		if !isHit {
			return core.Vec3{}
		}
		wo := core.NewDirection(ray.Direction.Negate(), hit.Normal)
		if !wo.Valid() {
			return core.Vec3{}
		}
		brdf := hit.Material.BRDF(hit.Normal)
		depth++

		// Emitters end the path
		if hit.Material.IsEmissive() {
			return throughput.MultiplyVec(hit.Material.Emission()).MultiplyVec(brdf.F(wo))
		}

		scatter := brdf.Sample(sampler)
		if !scatter.Valid() {
			return core.Vec3{}
		}
		pdf := scatter.PDF
		if depth >= RussianRouletteThreshold {
			survivalProb := russianRouletteProbability(scatter.F, scatter.W.AbsCos(), scatter.PDF)
			if survivalProb <= 0 || sampler.Get1D() >= survivalProb {
				return core.Vec3{}
			}
			pdf *= survivalProb
		}
		throughput = throughput.MultiplyVec(scatter.F).Multiply(scatter.W.AbsCos() / pdf)
		ray = core.NewRay(hit.Point, scatter.W.Vec())
	}
}
