package geometry

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/material"
)

func sphereRow(n int) []*Sphere {
	gray := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	spheres := make([]*Sphere, n)
	for i := range spheres {
		spheres[i] = NewSphere(core.NewVec3(float64(3*i), 0, 0), 1, gray)
	}
	return spheres
}

// bvhStats summarizes the shape of a built tree
type bvhStats struct {
	totalNodes   int
	leafNodes    int
	totalSpheres int
}

func collectStats(node *BVHNode, stats *bvhStats) {
	stats.totalNodes++
	if node.Spheres != nil {
		stats.leafNodes++
		stats.totalSpheres += len(node.Spheres)
		return
	}
	collectStats(node.Left, stats)
	collectStats(node.Right, stats)
}

func statsOf(bvh *BVH) bvhStats {
	var stats bvhStats
	if bvh.Root != nil {
		collectStats(bvh.Root, &stats)
	}
	return stats
}

func TestBVH_LeafThresholdBoundary(t *testing.T) {
	bvh := NewBVH(sphereRow(leafThreshold))
	stats := statsOf(bvh)
	if stats.totalNodes != 1 || stats.leafNodes != 1 {
		t.Errorf("Expected a single leaf for %d spheres, got %d nodes", leafThreshold, stats.totalNodes)
	}

	bvh = NewBVH(sphereRow(leafThreshold + 1))
	stats = statsOf(bvh)
	if stats.leafNodes < 2 {
		t.Errorf("Expected at least 2 leaf nodes after split, got %d", stats.leafNodes)
	}
	if stats.totalSpheres != leafThreshold+1 {
		t.Errorf("Expected %d spheres in leaves, got %d", leafThreshold+1, stats.totalSpheres)
	}
}

func TestBVH_Empty(t *testing.T) {
	bvh := NewBVH(nil)
	ray := core.NewRay(core.Vec3{}, core.NewVec3(1, 0, 0))
	if _, ok := bvh.Hit(&ray); ok {
		t.Error("Expected no hit for empty BVH")
	}
	if bvh.Occludes(ray) {
		t.Error("Expected no occlusion for empty BVH")
	}
}

func TestBVH_NearestHitAcrossLeaves(t *testing.T) {
	spheres := sphereRow(40)
	bvh := NewBVH(spheres)

	tests := []struct {
		name     string
		origin   core.Vec3
		dir      core.Vec3
		expected float64 // hit distance, 0 for a miss
	}{
		{"From the left", core.NewVec3(-5, 0, 0), core.NewVec3(1, 0, 0), 4},
		{"From the right", core.NewVec3(200, 0, 0), core.NewVec3(-1, 0, 0), 200 - 117 - 1},
		{"Between spheres downward", core.NewVec3(1.5, 5, 0), core.NewVec3(0, -1, 0), 0},
		{"Onto sphere 20", core.NewVec3(60, 5, 0), core.NewVec3(0, -1, 0), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ray := core.NewRay(tt.origin, tt.dir)
			hit, ok := bvh.Hit(&ray)
			if tt.expected == 0 {
				if ok {
					t.Errorf("Expected miss, got hit at t=%v", hit.T)
				}
				return
			}
			if !ok {
				t.Fatal("Expected hit, got miss")
			}
			if math.Abs(hit.T-tt.expected) > 1e-9 {
				t.Errorf("Expected t=%v, got %v", tt.expected, hit.T)
			}
			if ray.TMax != hit.T {
				t.Errorf("Expected TMax shrunk to %v, got %v", hit.T, ray.TMax)
			}
		})
	}
}

func TestBVH_MatchesLinearSearch(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	gray := material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	spheres := make([]*Sphere, 100)
	for i := range spheres {
		center := core.NewVec3(rng.Float64()*20-10, rng.Float64()*20-10, rng.Float64()*20-10)
		spheres[i] = NewSphere(center, 0.2+rng.Float64(), gray)
	}
	bvh := NewBVH(spheres)

	for i := 0; i < 500; i++ {
		origin := core.NewVec3(rng.Float64()*30-15, rng.Float64()*30-15, rng.Float64()*30-15)
		dir := core.SampleUniformSphere(core.Vec2{X: rng.Float64(), Y: rng.Float64()})

		linearRay := core.NewRay(origin, dir)
		var linear HitRecord
		linearOK := false
		for _, s := range spheres {
			if hit, ok := s.Hit(&linearRay); ok {
				linear, linearOK = hit, true
			}
		}

		ray := core.NewRay(origin, dir)
		got, ok := bvh.Hit(&ray)
		if ok != linearOK || (ok && math.Abs(got.T-linear.T) > 1e-9) {
			t.Fatalf("Ray %d: expected (%v, %v), got (%v, %v)", i, linearOK, linear.T, ok, got.T)
		}

		segment := core.NewSegment(origin, dir, 5)
		linearOccluded := false
		for _, s := range spheres {
			linearOccluded = linearOccluded || s.Occludes(segment)
		}
		if bvh.Occludes(segment) != linearOccluded {
			t.Fatalf("Ray %d: expected occlusion %v", i, linearOccluded)
		}
	}
}
