package material

import (
	"math"
	"testing"

	"github.com/df07/go-resampling-bdpt/pkg/core"
)

func TestEmissive_EmissionProfile(t *testing.T) {
	me := core.NewVec3(170, 120, 40)
	e := NewEmissive(me)
	normal := core.NewVec3(0, 1, 0)

	if !e.IsEmissive() {
		t.Error("Expected emissive material")
	}
	if e.Emission() != me {
		t.Errorf("Expected emission %v, got %v", me, e.Emission())
	}

	// Me·F(w) is the emitted radiance Me/π above the surface
	profile := e.BRDF(normal)
	up := core.NewDirection(core.NewVec3(0, 1, 1), normal)
	expected := me.Multiply(1 / math.Pi)
	if got := me.MultiplyVec(profile.F(up)); got.Subtract(expected).Length() > 1e-9 {
		t.Errorf("Expected radiance %v, got %v", expected, got)
	}
	if got, want := profile.PDF(up), up.Cos()/math.Pi; math.Abs(got-want) > 1e-12 {
		t.Errorf("Expected cosine emission pdf %v, got %v", want, got)
	}

	down := core.NewDirection(core.NewVec3(0, -1, 0), normal)
	if got := me.MultiplyVec(profile.F(down)); !got.IsZero() {
		t.Errorf("Expected no emission below the surface, got %v", got)
	}
}

func TestLambertian_IsNotEmissive(t *testing.T) {
	l := NewLambertian(core.NewVec3(0.5, 0.5, 0.5))
	if l.IsEmissive() || !l.Emission().IsZero() {
		t.Error("Expected lambertian to be non-emissive")
	}
}
