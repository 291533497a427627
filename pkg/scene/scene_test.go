package scene

import (
	"math"
	"testing"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/geometry"
	"github.com/df07/go-resampling-bdpt/pkg/material"
)

func TestCornellScene_EveryCameraRayHits(t *testing.T) {
	s := NewCornellScene(16, 16)
	sampler := core.NewRandomSampler(1, 0)

	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			ray := s.Camera.SampleRay(x, y, sampler)
			hit, ok := s.Intersect(&ray)
			if !ok {
				t.Fatalf("Pixel (%d,%d) missed the box", x, y)
			}
			if hit.Normal.Dot(ray.Direction) >= 0 {
				t.Fatalf("Pixel (%d,%d): normal %v does not face the ray", x, y, hit.Normal)
			}
			if math.Abs(hit.Point.X) > 1+1e-6 || math.Abs(hit.Point.Y) > 1+1e-6 || hit.Point.Z < -1-1e-6 {
				t.Fatalf("Pixel (%d,%d): hit %v outside the box", x, y, hit.Point)
			}
		}
	}
}

func TestScene_IntersectFindsNearest(t *testing.T) {
	white := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	near := geometry.NewSphere(core.NewVec3(0, 0, -2), 0.5, white)
	far := geometry.NewSphere(core.NewVec3(0, 0, -5), 0.5, white)
	s := NewScene(nil, far, near)

	ray := core.NewRay(core.Vec3{}, core.NewVec3(0, 0, -1))
	hit, ok := s.Intersect(&ray)
	if !ok {
		t.Fatal("Expected hit")
	}
	if math.Abs(hit.T-1.5) > 1e-9 {
		t.Errorf("Expected nearest hit at 1.5, got %v", hit.T)
	}
}

func TestScene_Occluded(t *testing.T) {
	s := NewCornellScene(8, 8)
	light := core.NewVec3(0, 0.8, 0)

	tests := []struct {
		name     string
		from     core.Vec3
		expected bool
	}{
		{"Floor center sees light", core.NewVec3(0, -1, 0), false},
		{"Point outside back wall", core.NewVec3(0, 0.8, -3), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := light.Subtract(tt.from)
			if got := s.Occluded(tt.from, d.Normalize(), d.Length()); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestScene_LightPDFMatchesSampling(t *testing.T) {
	dim := material.NewEmissive(core.NewVec3(1, 1, 1))
	bright := material.NewEmissive(core.NewVec3(4, 4, 4))
	white := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	s := NewScene(nil,
		geometry.NewSphere(core.NewVec3(-1, 0, 0), 0.2, dim),
		geometry.NewSphere(core.NewVec3(1, 0, 0), 0.1, bright),
		geometry.NewSphere(core.NewVec3(0, -10, 0), 9, white),
	)
	if !s.HasLights() {
		t.Fatal("Expected scene to have lights")
	}

	sampler := core.NewRandomSampler(11, 0)
	brightCount := 0
	const n = 20000
	for i := 0; i < n; i++ {
		ls, ok := s.SampleLight(sampler)
		if !ok {
			t.Fatal("Expected light sample")
		}
		if math.Abs(ls.PDF-s.LightPDF(ls.Material)) > 1e-12 {
			t.Fatalf("Sample pdf %v disagrees with LightPDF %v", ls.PDF, s.LightPDF(ls.Material))
		}
		if ls.Material == bright {
			brightCount++
		}
	}

	// power ratio: 1·0.04 vs 4·0.01, so each light is chosen half the time
	if got := float64(brightCount) / n; math.Abs(got-0.5) > 0.02 {
		t.Errorf("Expected bright light fraction 0.5, got %v", got)
	}
	if s.LightPDF(white) != 0 {
		t.Error("Expected zero light pdf for a non-emitter")
	}
}

func TestScene_NoLights(t *testing.T) {
	s := NewScene(nil, geometry.NewSphere(core.Vec3{}, 1, material.NewLambertian(core.NewVec3(1, 1, 1))))
	if s.HasLights() {
		t.Error("Expected no lights")
	}
	if _, ok := s.SampleLight(core.NewRandomSampler(1, 1)); ok {
		t.Error("Expected light sampling to fail")
	}
}
