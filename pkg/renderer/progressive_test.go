package renderer

import (
	"context"
	"errors"
	"testing"

	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

func TestProgressiveConfig(t *testing.T) {
	// Test default configuration
	config := DefaultProgressiveConfig()

	if config.Iterations != 16 {
		t.Errorf("Expected default iterations 16, got %d", config.Iterations)
	}
	if config.Gamma != 2.2 {
		t.Errorf("Expected default gamma 2.2, got %v", config.Gamma)
	}
}

func TestProgressive_AveragesIterations(t *testing.T) {
	r := newTestRenderer(t, scene.NewCornellScene(4, 4), testOptions(4))
	reference := newTestRenderer(t, scene.NewCornellScene(4, 4), testOptions(4))
	p := NewProgressive(r, ProgressiveConfig{Iterations: 3})

	sum := NewImage(4, 4)
	for i := 0; i < 3; i++ {
		img := reference.Render(context.Background())
		for px := range sum.Pix {
			sum.Pix[px] = sum.Pix[px].Add(img.Pix[px])
		}
		p.RenderPass(context.Background())
	}

	got := p.Image()
	for px := range sum.Pix {
		expected := sum.Pix[px].Multiply(1.0 / 3)
		if d := got.Pix[px].Subtract(expected).Length(); d > 1e-9*max(1, expected.Length()) {
			t.Errorf("Pixel %d: expected %v, got %v", px, expected, got.Pix[px])
		}
	}
	if stats := p.Stats(); stats.Passes != 3 {
		t.Errorf("Expected 3 passes, got %d", stats.Passes)
	}
}

func TestRenderProgressive_DeliversEveryPass(t *testing.T) {
	r := newTestRenderer(t, scene.NewCornellScene(4, 4), testOptions(6))
	p := NewProgressive(r, ProgressiveConfig{Iterations: 3, Gamma: 2.2})

	passChan, errChan := p.RenderProgressive(context.Background())
	var passes []PassResult
	for result := range passChan {
		passes = append(passes, result)
	}
	if err := <-errChan; err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(passes) != 3 {
		t.Fatalf("Expected 3 passes, got %d", len(passes))
	}
	for i, pass := range passes {
		if pass.PassNumber != i+1 {
			t.Errorf("Expected pass number %d, got %d", i+1, pass.PassNumber)
		}
		if pass.IsLast != (i == 2) {
			t.Errorf("Pass %d: unexpected IsLast %v", pass.PassNumber, pass.IsLast)
		}
		if pass.Stats.Passes != i+1 {
			t.Errorf("Pass %d: expected %d accumulated passes, got %d", pass.PassNumber, i+1, pass.Stats.Passes)
		}
	}
}

func TestRenderProgressive_Cancelled(t *testing.T) {
	r := newTestRenderer(t, scene.NewCornellScene(4, 4), testOptions(8))
	p := NewProgressive(r, ProgressiveConfig{Iterations: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	passChan, errChan := p.RenderProgressive(ctx)
	for range passChan {
	}
	if err := <-errChan; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if r.Iteration() != 0 {
		t.Errorf("Expected no iteration after cancellation, got %d", r.Iteration())
	}
}
