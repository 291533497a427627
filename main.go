package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/df07/go-resampling-bdpt/pkg/integrator"
	"github.com/df07/go-resampling-bdpt/pkg/renderer"
	"github.com/df07/go-resampling-bdpt/pkg/scene"
	"github.com/df07/go-resampling-bdpt/web/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// rootFlags are shared by every subcommand
type rootFlags struct {
	logLevel string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:          "rbdpt",
		Short:        "Resampling-aware bidirectional path tracer",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	cmd.AddCommand(newRenderCommand(flags), newServeCommand(flags))
	return cmd
}

// newLogger creates a text logger at the named level
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// renderFlags holds the options of the render command
type renderFlags struct {
	scene          string
	width, height  int
	candidates     int
	iterations     int
	workers        int
	seed           uint64
	gamma          float64
	output         string
	metricsAddr    string
	noLightTracing bool
	noResampling   bool
}

func (f *renderFlags) register(fs *pflag.FlagSet) {
	defaults := renderer.DefaultOptions()
	progressive := renderer.DefaultProgressiveConfig()

	fs.StringVar(&f.scene, "scene", "cornell", "Built-in scene ("+builtinIDs()+") or path to a JSON scene")
	fs.IntVar(&f.width, "width", 0, "Image width, 0 for the scene's own")
	fs.IntVar(&f.height, "height", 0, "Image height, 0 for the scene's own")
	fs.IntVar(&f.candidates, "candidates", defaults.Candidates, "Candidate light paths per iteration")
	fs.IntVar(&f.iterations, "iterations", progressive.Iterations, "Iterations to accumulate")
	fs.IntVar(&f.workers, "workers", 0, "Worker goroutines, 0 for one per CPU")
	fs.Uint64Var(&f.seed, "seed", 0, "Base random seed")
	fs.Float64Var(&f.gamma, "gamma", progressive.Gamma, "Output gamma")
	fs.StringVarP(&f.output, "output", "o", "", "Output PNG, defaults to output/<scene>/render_<timestamp>.png")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while rendering")
	fs.BoolVar(&f.noLightTracing, "no-light-tracing", false, "Disable the light tracing strategy")
	fs.BoolVar(&f.noResampling, "no-resampling", false, "Disable the resampled strategies")
}

// strategies returns the connection strategies enabled by the flags
func (f *renderFlags) strategies() integrator.Strategies {
	return integrator.Strategies{
		LightTracing: !f.noLightTracing,
		Resampling:   !f.noResampling,
	}
}

// outputPath returns the PNG path for a render finished at now
func (f *renderFlags) outputPath(now time.Time) string {
	if f.output != "" {
		return f.output
	}
	name := strings.TrimSuffix(filepath.Base(f.scene), filepath.Ext(f.scene))
	return filepath.Join("output", name, fmt.Sprintf("render_%s.png", now.Format("20060102_150405")))
}

func builtinIDs() string {
	var ids []string
	for _, info := range scene.Builtins() {
		ids = append(ids, info.ID)
	}
	return strings.Join(ids, ", ")
}

func newRenderCommand(root *rootFlags) *cobra.Command {
	flags := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a scene progressively and save it as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), root.logLevel)
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), flags, logger)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

// runRender accumulates the configured iterations and writes the result.
// On cancellation the partial estimate is still saved.
func runRender(ctx context.Context, flags *renderFlags, logger *slog.Logger) error {
	if flags.iterations < 1 {
		return fmt.Errorf("iterations must be positive, got %d", flags.iterations)
	}
	s, err := scene.Resolve(flags.scene, flags.width, flags.height)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	if flags.metricsAddr != "" {
		_, stopMetrics, err := serveMetrics(flags.metricsAddr, registry, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	opts := renderer.DefaultOptions()
	opts.Candidates = flags.candidates
	opts.Workers = flags.workers
	opts.Seed = flags.seed
	opts.Strategies = flags.strategies()
	opts.Logger = logger
	opts.Registerer = registry

	r, err := renderer.New(s, opts)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	logger.Info("rendering",
		"scene", flags.scene,
		"width", s.Camera.Width(),
		"height", s.Camera.Height(),
		"run_id", r.RunID())

	progressive := renderer.NewProgressive(r, renderer.ProgressiveConfig{
		Iterations: flags.iterations,
		Gamma:      flags.gamma,
	})
	startTime := time.Now()
	passChan, errChan := progressive.RenderProgressive(ctx)
	var last *renderer.Image
	for result := range passChan {
		last = result.Image
	}
	renderErr := <-errChan
	if last == nil {
		return renderErr
	}

	path := flags.outputPath(time.Now())
	if err := writePNG(path, last, flags.gamma); err != nil {
		return err
	}
	logger.Info("render saved",
		"path", path,
		"passes", progressive.Stats().Passes,
		"duration", time.Since(startTime))
	return renderErr
}

// serveMetrics exposes registry on addr. It returns the bound address and a
// function that stops the server.
func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	bound := ln.Addr().String()
	logger.Info("serving metrics", "addr", bound)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return bound, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}, nil
}

// writePNG saves img to path, creating parent directories
func writePNG(path string, img *renderer.Image, gamma float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := img.WritePNG(f, gamma); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

// serveFlags holds the options of the serve command
type serveFlags struct {
	addr      string
	scenesDir string
	workers   int
}

func newServeCommand(root *rootFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve progressive renders over HTTP with server-sent events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), root.logLevel)
			if err != nil {
				return err
			}
			srv := server.NewServer(server.Config{
				ScenesDir: flags.scenesDir,
				Workers:   flags.workers,
				Logger:    logger,
			})
			return srv.Start(cmd.Context(), flags.addr)
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", ":8080", "Address to serve on")
	cmd.Flags().StringVar(&flags.scenesDir, "scenes-dir", "scenes", "Directory of JSON scenes offered to clients")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Worker goroutines per render, 0 for one per CPU")
	return cmd
}
