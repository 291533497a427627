package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestRandomSampler_Reseed(t *testing.T) {
	a := NewRandomSampler(1, 2)
	first := []float64{a.Get1D(), a.Get1D(), a.Get1D()}

	a.Reseed(1, 2)
	for i, expected := range first {
		if got := a.Get1D(); got != expected {
			t.Errorf("Draw %d: expected %v after reseed, got %v", i, expected, got)
		}
	}

	b := NewRandomSampler(1, 3)
	if b.Get1D() == first[0] {
		t.Error("Expected different streams to produce different values")
	}
}

func TestSampleCosineHemisphere(t *testing.T) {
	sampler := NewRandomSampler(42, 0)
	normal := NewVec3(0, 1, 0)

	cosines := make([]float64, 20000)
	for i := range cosines {
		w := SampleCosineHemisphere(normal, sampler.Get2D())
		if math.Abs(w.Length()-1) > 1e-9 {
			t.Fatalf("Expected unit vector, got length %v", w.Length())
		}
		if w.Dot(normal) < 0 {
			t.Fatalf("Expected direction in upper hemisphere, got %v", w)
		}
		cosines[i] = w.Dot(normal)
	}

	// E[cos] under a cosine-weighted hemisphere is 2/3
	if mean := stat.Mean(cosines, nil); math.Abs(mean-2.0/3.0) > 0.01 {
		t.Errorf("Expected mean cosine 2/3, got %v", mean)
	}
}

func TestSampleUniformSphere(t *testing.T) {
	sampler := NewRandomSampler(42, 1)
	zs := make([]float64, 20000)
	for i := range zs {
		w := SampleUniformSphere(sampler.Get2D())
		if math.Abs(w.Length()-1) > 1e-9 {
			t.Fatalf("Expected unit vector, got length %v", w.Length())
		}
		zs[i] = w.Z
	}
	if mean := stat.Mean(zs, nil); math.Abs(mean) > 0.02 {
		t.Errorf("Expected mean z near 0, got %v", mean)
	}
	// Var of a uniform variable on [-1,1] is 1/3
	if variance := stat.Variance(zs, nil); math.Abs(variance-1.0/3.0) > 0.02 {
		t.Errorf("Expected variance 1/3, got %v", variance)
	}
}

func TestOrthonormalBasis(t *testing.T) {
	for _, n := range []Vec3{NewVec3(1, 0, 0), NewVec3(0, 1, 0), NewVec3(0, 0, -1), NewVec3(1, 1, 1).Normalize()} {
		tangent, bitangent := OrthonormalBasis(n)
		if math.Abs(tangent.Dot(n)) > 1e-9 || math.Abs(bitangent.Dot(n)) > 1e-9 || math.Abs(tangent.Dot(bitangent)) > 1e-9 {
			t.Errorf("Basis for %v is not orthogonal", n)
		}
	}
}
