package renderer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/geometry"
	"github.com/df07/go-resampling-bdpt/pkg/integrator"
	"github.com/df07/go-resampling-bdpt/pkg/material"
	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions(seed uint64) Options {
	opts := DefaultOptions()
	opts.Candidates = 16
	opts.Workers = 4
	opts.Seed = seed
	opts.Logger = quietLogger()
	return opts
}

func newTestRenderer(t *testing.T, s *scene.Scene, opts Options) *Renderer {
	t.Helper()
	r, err := New(s, opts)
	if err != nil {
		t.Fatalf("Expected renderer, got error %v", err)
	}
	return r
}

func TestNew_Validation(t *testing.T) {
	cornell := scene.NewCornellScene(4, 4)
	camera := cornell.Camera
	dark := scene.NewScene(camera, geometry.NewSphere(core.Vec3{}, 1, material.NewLambertian(core.NewVec3(0.5, 0.5, 0.5))))

	tests := []struct {
		name     string
		scene    *scene.Scene
		mutate   func(*Options)
		expected error
	}{
		{"Zero candidates", cornell, func(o *Options) { o.Candidates = 0 }, ErrInvalidOptions},
		{"Negative workers", cornell, func(o *Options) { o.Workers = -1 }, ErrInvalidOptions},
		{"No camera", scene.NewScene(nil), func(o *Options) {}, ErrInvalidOptions},
		{"No lights", dark, func(o *Options) {}, ErrNoLights},
		{"Valid", cornell, func(o *Options) {}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(1)
			tt.mutate(&opts)
			_, err := New(tt.scene, opts)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestRender_FiniteNonNegative(t *testing.T) {
	tests := []struct {
		name       string
		strategies integrator.Strategies
	}{
		{"All strategies", integrator.AllStrategies()},
		{"Path tracing only", integrator.Strategies{}},
		{"No light tracing", integrator.Strategies{Resampling: true}},
		{"No resampling", integrator.Strategies{LightTracing: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(3)
			opts.Strategies = tt.strategies
			r := newTestRenderer(t, scene.NewCornellScene(8, 8), opts)
			for i := 0; i < 3; i++ {
				img := r.Render(context.Background())
				if img.Width != 8 || img.Height != 8 || len(img.Pix) != 64 {
					t.Fatalf("Expected 8x8 image, got %dx%d", img.Width, img.Height)
				}
				for p, c := range img.Pix {
					if !c.IsFinite() || c.X < 0 || c.Y < 0 || c.Z < 0 {
						t.Fatalf("Iteration %d pixel %d: expected non-negative finite value, got %v", i, p, c)
					}
				}
				// Plain path tracing can miss the small light entirely at this size
				lit := tt.strategies.LightTracing || tt.strategies.Resampling
				if lit && img.Mean().Luminance() <= 0 {
					t.Errorf("Iteration %d: expected a lit image", i)
				}
			}
			if r.Iteration() != 3 {
				t.Errorf("Expected 3 iterations, got %d", r.Iteration())
			}
		})
	}
}

func TestRender_IndependentOfWorkerCount(t *testing.T) {
	s := scene.NewCornellScene(8, 8)
	one := testOptions(5)
	one.Workers = 1
	many := testOptions(5)
	many.Workers = 7

	a := newTestRenderer(t, s, one)
	b := newTestRenderer(t, s, many)
	for i := 0; i < 3; i++ {
		imgA := a.Render(context.Background())
		imgB := b.Render(context.Background())
		for p := range imgA.Pix {
			// Splats may be summed in a different order
			if d := imgA.Pix[p].Subtract(imgB.Pix[p]).Length(); d > 1e-9*max(1, imgA.Pix[p].Length()) {
				t.Fatalf("Iteration %d pixel %d: expected %v, got %v", i, p, imgA.Pix[p], imgB.Pix[p])
			}
		}
	}
}

// TestRender_PathTracingOnlyMatchesPathTracer checks that disabling light
// tracing and resampling reduces every pixel to the reference path tracer
// drawing from the same stream
func TestRender_PathTracingOnlyMatchesPathTracer(t *testing.T) {
	s := scene.NewCornellScene(8, 8)
	opts := testOptions(9)
	opts.Strategies = integrator.Strategies{}
	r := newTestRenderer(t, s, opts)
	pt := integrator.NewPathTracer(s)
	sampler := core.NewRandomSampler(0, 0)
	w := &Worker{sampler: sampler}

	for iteration := 0; iteration < 4; iteration++ {
		img := r.Render(context.Background())
		for p := range img.Pix {
			w.reseed(opts.Seed, iteration, phaseCamera, p)
			expected := pt.Radiance(p%8, p/8, sampler)
			if d := img.Pix[p].Subtract(expected).Length(); d > 1e-9*max(1, expected.Length()) {
				t.Fatalf("Iteration %d pixel %d: expected %v, got %v", iteration, p, expected, img.Pix[p])
			}
		}
	}
}

// imageMeanLuminance renders iterations and returns the mean image
// luminance with its standard error
func imageMeanLuminance(t *testing.T, s *scene.Scene, strategies integrator.Strategies, seed uint64, iterations int) (float64, float64) {
	t.Helper()
	opts := testOptions(seed)
	opts.Strategies = strategies
	r := newTestRenderer(t, s, opts)
	samples := make([]float64, iterations)
	for i := range samples {
		samples[i] = r.Render(context.Background()).Mean().Luminance()
	}
	mean, std := stat.MeanStdDev(samples, nil)
	return mean, std / math.Sqrt(float64(iterations))
}

// TestRender_StrategiesAgree compares the image mean of each strategy mix
// against light tracing alone, the lowest-variance single estimator here
func TestRender_StrategiesAgree(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}
	const iterations = 1000
	s := scene.NewCornellScene(8, 8)

	reference, referenceSE := imageMeanLuminance(t, s, integrator.Strategies{LightTracing: true}, 101, iterations)
	if reference <= 0 {
		t.Fatal("Expected a lit reference image")
	}

	tests := []struct {
		name       string
		strategies integrator.Strategies
		seed       uint64
		maxRelSE   float64 // bound on the combined standard error, keeps the check sharp
	}{
		{"All strategies", integrator.AllStrategies(), 102, 0.01},
		{"Resampling only", integrator.Strategies{Resampling: true}, 103, 0.1},
		{"Path tracing only", integrator.Strategies{}, 104, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, se := imageMeanLuminance(t, s, tt.strategies, tt.seed, iterations)
			combined := math.Hypot(se, referenceSE)
			if combined > tt.maxRelSE*reference {
				t.Errorf("Expected standard error below %v of the mean, got %v", tt.maxRelSE, combined/reference)
			}
			if d := math.Abs(mean - reference); d > 4*combined {
				t.Errorf("Expected %v within 4 standard errors (%v) of light tracing %v, got difference %v",
					mean, combined, reference, d)
			}
		})
	}
}

// TestRender_VarianceDecreasesWithIterations averages K iterations in
// independent batches and checks the spread across batches shrinks with K.
// Every iteration image must stay non-negative and finite.
func TestRender_VarianceDecreasesWithIterations(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}
	const batches = 6
	s := scene.NewCornellScene(8, 8)

	// spread returns the per-pixel luminance variance across batches,
	// averaged over the image
	spread := func(k int) float64 {
		samples := make([][]float64, 64)
		for b := 0; b < batches; b++ {
			r := newTestRenderer(t, s, testOptions(uint64(1000*k+b)))
			pixels := make([]PixelStats, 64)
			for i := 0; i < k; i++ {
				img := r.Render(context.Background())
				for px, c := range img.Pix {
					if !c.IsFinite() || c.X < 0 || c.Y < 0 || c.Z < 0 {
						t.Fatalf("K=%d batch %d iteration %d pixel %d: expected non-negative finite value, got %v", k, b, i, px, c)
					}
					pixels[px].AddSample(c)
				}
			}
			for px := range pixels {
				samples[px] = append(samples[px], pixels[px].GetColor().Luminance())
			}
		}
		variances := make([]float64, len(samples))
		for px := range samples {
			variances[px] = stat.Variance(samples[px], nil)
		}
		return stat.Mean(variances, nil)
	}

	v64 := spread(64)
	v256 := spread(256)
	if !(v256 < v64) {
		t.Errorf("Expected variance to shrink from K=64 (%v) to K=256 (%v)", v64, v256)
	}
}
