package renderer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	Iterations int     // Number of iterations to accumulate
	Gamma      float64 // Display gamma for pass previews
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		Iterations: 16,
		Gamma:      2.2,
	}
}

// Progressive averages successive renderer iterations into one estimate
type Progressive struct {
	renderer   *Renderer
	config     ProgressiveConfig
	pixelStats []PixelStats
	passes     int
}

// NewProgressive creates an accumulator over r
func NewProgressive(r *Renderer, config ProgressiveConfig) *Progressive {
	camera := r.scene.Camera
	return &Progressive{
		renderer:   r,
		config:     config,
		pixelStats: make([]PixelStats, camera.PixelCount()),
	}
}

// RenderPass renders one iteration and adds it to the accumulated estimate
func (p *Progressive) RenderPass(ctx context.Context) (*Image, RenderStats) {
	img := p.renderer.Render(ctx)
	for i, c := range img.Pix {
		p.pixelStats[i].AddSample(c)
	}
	p.passes++
	return p.Image(), p.Stats()
}

// Image returns the average of the accumulated iterations
func (p *Progressive) Image() *Image {
	camera := p.renderer.scene.Camera
	img := NewImage(camera.Width(), camera.Height())
	for i := range p.pixelStats {
		img.Pix[i] = p.pixelStats[i].GetColor()
	}
	return img
}

// Stats summarizes the accumulated estimate
func (p *Progressive) Stats() RenderStats {
	stats := RenderStats{Passes: p.passes}
	if len(p.pixelStats) == 0 {
		return stats
	}
	for i := range p.pixelStats {
		ps := &p.pixelStats[i]
		c := ps.GetColor()
		stats.Mean = stats.Mean.Add(c)
		stats.MeanVariance += ps.Variance()
		stats.MaxPixelValue = max(stats.MaxPixelValue, c.Luminance())
	}
	inv := 1 / float64(len(p.pixelStats))
	stats.Mean = stats.Mean.Multiply(inv)
	stats.MeanVariance *= inv
	return stats
}

// PassResult contains the result of a single pass
type PassResult struct {
	PassNumber int
	Image      *Image
	Stats      RenderStats
	Duration   time.Duration
	IsLast     bool
}

// RenderProgressive renders the configured number of iterations in the
// background. Cancelling ctx stops the loop between iterations and delivers
// ctx.Err() on the error channel. Both channels are closed when rendering ends.
func (p *Progressive) RenderProgressive(ctx context.Context) (<-chan PassResult, <-chan error) {
	passChan := make(chan PassResult, 1)
	errChan := make(chan error, 1)
	logger := p.renderer.logger

	go func() {
		defer close(passChan)
		defer close(errChan)

		ctx, span := p.renderer.tracer.Start(ctx, "RenderProgressive", trace.WithAttributes(
			attribute.String("run_id", p.renderer.runID.String()),
			attribute.Int("iterations", p.config.Iterations),
		))
		defer span.End()

		logger.Info("starting progressive rendering",
			"iterations", p.config.Iterations,
			"workers", p.renderer.pool.NumWorkers(),
			"candidates", p.renderer.opts.Candidates)

		for pass := 1; pass <= p.config.Iterations; pass++ {
			// Check for cancellation before starting this pass
			select {
			case <-ctx.Done():
				logger.Info("rendering cancelled", "pass", pass)
				span.SetStatus(codes.Error, "cancelled")
				errChan <- ctx.Err()
				return
			default:
			}

			startTime := time.Now()
			img, stats := p.RenderPass(ctx)
			passTime := time.Since(startTime)

			logger.Info("pass completed",
				"pass", pass,
				"duration", passTime,
				"mean_luminance", stats.Mean.Luminance(),
				"mean_variance", stats.MeanVariance)

			result := PassResult{
				PassNumber: pass,
				Image:      img,
				Stats:      stats,
				Duration:   passTime,
				IsLast:     pass == p.config.Iterations,
			}
			select {
			case passChan <- result:
			case <-ctx.Done():
				span.SetStatus(codes.Error, "cancelled")
				errChan <- ctx.Err()
				return
			}
		}
		span.SetStatus(codes.Ok, "")
	}()

	return passChan, errChan
}
