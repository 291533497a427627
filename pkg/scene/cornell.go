package scene

import (
	"math"

	"github.com/df07/go-resampling-bdpt/pkg/core"
)

const wallRadius = 1e3

// CornellDescription describes a Cornell-like box spanning [-1, 1]³, open
// toward the camera. Each wall is the near side of a radius-1e3 sphere that
// contains the box interior. One small emissive sphere lights the box.
func CornellDescription(width, height int) Description {
	const vfov = 40.0
	white := core.NewVec3(0.725, 0.71, 0.68)

	return Description{
		Camera: CameraDescription{
			Center: core.NewVec3(0, 0, 1/math.Tan(vfov/2*math.Pi/180)+1),
			LookAt: core.NewVec3(0, 0, 0),
			Up:     core.NewVec3(0, 1, 0),
			Width:  width,
			Height: height,
			VFov:   vfov,
		},
		Spheres: []SphereDescription{
			{Center: core.NewVec3(1-wallRadius, 0, 0), Radius: wallRadius, Color: core.NewVec3(0.14, 0.45, 0.091)}, // green, x = +1
			{Center: core.NewVec3(wallRadius-1, 0, 0), Radius: wallRadius, Color: core.NewVec3(0.63, 0.065, 0.05)}, // red, x = -1
			{Center: core.NewVec3(0, 1-wallRadius, 0), Radius: wallRadius, Color: white},                           // ceiling, y = +1
			{Center: core.NewVec3(0, wallRadius-1, 0), Radius: wallRadius, Color: white},                           // floor, y = -1
			{Center: core.NewVec3(0, 0, wallRadius-1), Radius: wallRadius, Color: white},                           // back, z = -1
			{Center: core.NewVec3(0, 0.9, 0), Radius: 0.1, Color: core.NewVec3(170, 120, 40), Emissive: true},
		},
	}
}

// CornellCornerDescription replaces the ceiling light with a brighter one
// tucked into a floor corner behind three dark occluding spheres, a
// configuration where most light reaches the camera through indirect paths
func CornellCornerDescription(width, height int) Description {
	d := CornellDescription(width, height)
	d.Spheres = d.Spheres[:5]
	dark := core.NewVec3(0.1, 0.1, 0.1)
	d.Spheres = append(d.Spheres,
		SphereDescription{Center: core.NewVec3(0.89, -0.89, -0.89), Radius: 0.1, Color: core.NewVec3(1700, 1200, 400), Emissive: true},
		SphereDescription{Center: core.NewVec3(0.89, -0.89+0.31, -0.89), Radius: 0.2, Color: dark},
		SphereDescription{Center: core.NewVec3(0.89-0.31, -0.89, -0.89), Radius: 0.2, Color: dark},
		SphereDescription{Center: core.NewVec3(0.89, -0.89, -0.89+0.31), Radius: 0.2, Color: dark},
	)
	return d
}

// NewCornellScene builds the Cornell sphere box at the given resolution
func NewCornellScene(width, height int) *Scene {
	s, err := CornellDescription(width, height).Build()
	if err != nil {
		panic(err)
	}
	return s
}
