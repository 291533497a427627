package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

// Config configures the web server
type Config struct {
	ScenesDir string              // directory scanned for JSON scenes
	Workers   int                 // render workers per request, 0 for NumCPU
	Logger    *slog.Logger        // server log, defaults to slog.Default()
	Registry  *prometheus.Registry // exposed on /metrics, created when nil
}

// Server handles web requests for the progressive renderer
type Server struct {
	config   Config
	logger   *slog.Logger
	registry *prometheus.Registry
	renders  *prometheus.CounterVec
	active   prometheus.Gauge
}

// NewServer creates a new web server
func NewServer(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(config.Registry)
	return &Server{
		config:   config,
		logger:   config.Logger,
		registry: config.Registry,
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rbdpt_server_renders_total",
			Help: "Render requests by outcome.",
		}, []string{"outcome"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rbdpt_server_active_renders",
			Help: "Renders currently streaming.",
		}),
	}
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/scenes", s.handleScenes)
	mux.HandleFunc("/api/inspect", s.handleInspect)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", "addr", addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ScenesResponse lists the scenes a render request can name
type ScenesResponse struct {
	Builtin []scene.SceneInfo `json:"builtin"`
	Files   []scene.SceneInfo `json:"files"`
}

// handleScenes lists built-in scenes and the JSON scenes on disk
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	response := ScenesResponse{Builtin: scene.Builtins(), Files: []scene.SceneInfo{}}
	if s.config.ScenesDir != "" {
		files, err := scene.ListSceneFiles(s.config.ScenesDir)
		if err != nil {
			s.logger.Warn("failed to list scenes", "dir", s.config.ScenesDir, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		response.Files = files
	}
	writeJSON(w, http.StatusOK, response)
}

// sceneAllowed reports whether a request may render the named scene. Files
// must come from the configured scenes directory.
func (s *Server) sceneAllowed(name string) bool {
	for _, info := range scene.Builtins() {
		if info.ID == name {
			return true
		}
	}
	if s.config.ScenesDir == "" {
		return false
	}
	files, err := scene.ListSceneFiles(s.config.ScenesDir)
	if err != nil {
		return false
	}
	for _, info := range files {
		if info.ID == name {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %f and %f, got: %f", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseBoolParam parses a boolean parameter from URL query
func parseBoolParam(values url.Values, key string, defaultValue bool) (bool, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %s", key, value)
		}
		return parsed, nil
	}
	return defaultValue, nil
}
