// Package renderer drives iterations of resampling-aware bidirectional path
// tracing over a worker pool and accumulates them into images.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/integrator"
	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

const tracerName = "github.com/df07/go-resampling-bdpt/pkg/renderer"

var (
	// ErrInvalidOptions is returned by New for unusable options
	ErrInvalidOptions = errors.New("invalid render options")
	// ErrNoLights is returned by New for scenes without emitters
	ErrNoLights = errors.New("scene has no light sources")
)

// Options configures a Renderer
type Options struct {
	Candidates int    // M, light paths shared by all cache points of an iteration
	Workers    int    // parallel workers (0 = use CPU count)
	Seed       uint64 // base of every random stream
	Strategies integrator.Strategies

	Logger     *slog.Logger          // nil = slog.Default()
	Registerer prometheus.Registerer // nil = metrics are not registered
}

// DefaultOptions returns the options used by the reference configuration
func DefaultOptions() Options {
	return Options{
		Candidates: 200,
		Strategies: integrator.AllStrategies(),
	}
}

// Renderer renders successive independent estimates of a static scene. Only
// the cache set of the previous iteration carries over between calls to
// Render. A Renderer is not safe for concurrent use.
type Renderer struct {
	scene   *scene.Scene
	opts    Options
	pool    *WorkerPool
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	runID   uuid.UUID

	iteration int
	caches    *integrator.CacheSet

	lightPaths []integrator.LightPath
	candidates []integrator.Candidate
	lens       []integrator.CameraVertex
	direct     []core.Vec3
	resampled  []core.Vec3
	points     [][]integrator.CachePoint // per pixel, merged after the camera phase
	splats     *SplatBuffer
}

// New validates the options and prepares a renderer for s
func New(s *scene.Scene, opts Options) (*Renderer, error) {
	if s == nil || s.Camera == nil {
		return nil, fmt.Errorf("%w: scene without camera", ErrInvalidOptions)
	}
	if opts.Candidates < 1 {
		return nil, fmt.Errorf("%w: candidates must be at least 1, got %d", ErrInvalidOptions, opts.Candidates)
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: negative worker count %d", ErrInvalidOptions, opts.Workers)
	}
	if !s.HasLights() {
		return nil, ErrNoLights
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pixels := s.Camera.PixelCount()
	r := &Renderer{
		scene:      s,
		opts:       opts,
		pool:       NewWorkerPool(opts.Workers),
		metrics:    NewMetrics(opts.Registerer),
		tracer:     otel.Tracer(tracerName),
		runID:      uuid.New(),
		lightPaths: make([]integrator.LightPath, opts.Candidates),
		lens:       make([]integrator.CameraVertex, pixels),
		direct:     make([]core.Vec3, pixels),
		resampled:  make([]core.Vec3, pixels),
		points:     make([][]integrator.CachePoint, pixels),
		splats:     NewSplatBuffer(s.Camera.Width(), s.Camera.Height()),
	}
	r.logger = logger.With("run_id", r.runID.String())
	return r, nil
}

// RunID identifies the renderer in logs and traces
func (r *Renderer) RunID() uuid.UUID {
	return r.runID
}

// Iteration returns the number of completed iterations
func (r *Renderer) Iteration() int {
	return r.iteration
}

// Metrics returns the renderer's collectors
func (r *Renderer) Metrics() *Metrics {
	return r.metrics
}

// Render runs one iteration and returns its linear radiance estimate.
// ctx only carries trace context; an iteration always runs to completion.
func (r *Renderer) Render(ctx context.Context) *Image {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "Render", trace.WithAttributes(
		attribute.String("run_id", r.runID.String()),
		attribute.Int("iteration", r.iteration),
	))
	defer span.End()

	prev := r.caches
	builder := &integrator.PathBuilder{Scene: r.scene, Caches: prev}
	resampling := r.opts.Strategies.Resampling

	if resampling {
		r.traceCandidates(ctx, builder)
	}

	virtualQ := 1.0
	if z, ok := prev.MeanZ(); ok {
		virtualQ = z
	}
	engine := &integrator.WeightEngine{
		Scene:      r.scene,
		Caches:     prev,
		Candidates: r.opts.Candidates,
		VirtualQ:   virtualQ,
		Strategies: r.opts.Strategies,
	}

	r.traceCamera(ctx, builder, engine)
	if resampling {
		r.caches = r.mergeCachePoints()
	}
	if r.opts.Strategies.LightTracing {
		r.traceLight(ctx, builder, engine)
	}
	img := r.compose()

	elapsed := time.Since(start)
	r.metrics.Iterations.Inc()
	r.metrics.IterationDuration.Observe(elapsed.Seconds())
	r.metrics.CachePoints.Set(float64(r.caches.Len()))
	span.SetAttributes(
		attribute.Int("candidates", len(r.candidates)),
		attribute.Int("cache_points", r.caches.Len()),
		attribute.Float64("virtual_q", virtualQ),
	)
	r.logger.Debug("iteration complete",
		"iteration", r.iteration,
		"candidates", len(r.candidates),
		"cache_points", r.caches.Len(),
		"virtual_q", virtualQ,
		"duration", elapsed)

	r.iteration++
	return img
}

// traceCandidates fills the shared candidate pool with M light paths
// annotated against the previous cache set
func (r *Renderer) traceCandidates(ctx context.Context, builder *integrator.PathBuilder) {
	_, span := r.tracer.Start(ctx, "candidates")
	defer span.End()

	r.pool.Run(len(r.lightPaths), func(w *Worker, i int) {
		w.reseed(r.opts.Seed, r.iteration, phaseCandidates, i)
		builder.BuildLight(&r.lightPaths[i], w.sampler, w.scratch)
	})
	r.candidates = integrator.AppendCandidates(r.candidates[:0], r.lightPaths)
	r.metrics.LightPaths.WithLabelValues("candidate").Add(float64(len(r.lightPaths)))
}

// traceCamera builds one camera path per pixel, records its s=0 estimate and
// creates a cache point with a resampled estimate at every non-emissive vertex
func (r *Renderer) traceCamera(ctx context.Context, builder *integrator.PathBuilder, engine *integrator.WeightEngine) {
	_, span := r.tracer.Start(ctx, "camera")
	defer span.End()

	width := r.scene.Camera.Width()
	resampling := r.opts.Strategies.Resampling
	r.pool.Run(len(r.direct), func(w *Worker, p int) {
		w.reseed(r.opts.Seed, r.iteration, phaseCamera, p)
		builder.BuildCamera(&w.camera, p%width, p/width, w.sampler, w.scratch)
		r.lens[p] = *w.camera.Lens()
		r.direct[p] = engine.PathTraced(&w.camera, w.scratch)

		var sum core.Vec3
		points := r.points[p][:0]
		if resampling {
			for i := 1; i < w.camera.Len(); i++ {
				v := w.camera.At(i)
				if v.IsEmissive() {
					continue
				}
				c := integrator.NewCachePoint(v, builder.Caches)
				c.CalcDistribution(r.scene, r.candidates, r.opts.Candidates, &w.distribution)
				if c.Z == 0 {
					r.metrics.ZeroNormalization.Inc()
				}
				sum = sum.Add(engine.Resampled(&w.camera, i+1, &c, w.sampler, w.scratch))
				c.Release()
				points = append(points, c)
			}
		}
		r.points[p] = points
		r.resampled[p] = sum
	})
	r.metrics.CameraPaths.Add(float64(len(r.direct)))
}

// mergeCachePoints concatenates the per-pixel cache points in pixel order
// and indexes them for the next iteration
func (r *Renderer) mergeCachePoints() *integrator.CacheSet {
	total := 0
	for _, pts := range r.points {
		total += len(pts)
	}
	merged := make([]integrator.CachePoint, 0, total)
	for _, pts := range r.points {
		merged = append(merged, pts...)
	}
	return integrator.NewCacheSet(merged)
}

// traceLight traces one light path per pixel and splats its connections to
// the lens vertex of that pixel's camera path
func (r *Renderer) traceLight(ctx context.Context, builder *integrator.PathBuilder, engine *integrator.WeightEngine) {
	_, span := r.tracer.Start(ctx, "light")
	defer span.End()

	r.splats.Reset()
	r.pool.Run(len(r.lens), func(w *Worker, p int) {
		w.reseed(r.opts.Seed, r.iteration, phaseLight, p)
		builder.BuildLight(&w.light, w.sampler, w.scratch)
		engine.LightTraced(&w.light, &r.lens[p], r.splats.Add)
	})
	r.metrics.LightPaths.WithLabelValues("light_tracing").Add(float64(len(r.lens)))
}

// compose sums the three estimator families; light tracing splats are
// averaged over the N light paths of the iteration
func (r *Renderer) compose() *Image {
	camera := r.scene.Camera
	img := NewImage(camera.Width(), camera.Height())
	lightTracing := r.opts.Strategies.LightTracing
	invN := 1 / float64(len(img.Pix))
	for p := range img.Pix {
		c := r.direct[p].Add(r.resampled[p])
		if lightTracing {
			c = c.Add(r.splats.At(p).Multiply(invN))
		}
		img.Pix[p] = c
	}
	return img
}
