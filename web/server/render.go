package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/df07/go-resampling-bdpt/pkg/integrator"
	"github.com/df07/go-resampling-bdpt/pkg/renderer"
	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Scene        string  `json:"scene"`        // Built-in scene ID or scene file path
	Width        int     `json:"width"`        // Image width
	Height       int     `json:"height"`       // Image height
	Iterations   int     `json:"iterations"`   // Number of passes to accumulate
	Candidates   int     `json:"candidates"`   // Candidate light paths per iteration
	Seed         uint64  `json:"seed"`         // Base random seed
	LightTracing bool    `json:"lightTracing"` // Enable the light tracing strategy
	Resampling   bool    `json:"resampling"`   // Enable the resampled strategies
	Gamma        float64 `json:"gamma"`        // Display gamma of streamed images
}

// ProgressUpdate represents a single progressive update sent via SSE
type ProgressUpdate struct {
	RunID       string    `json:"runId"`
	PassNumber  int       `json:"passNumber"`
	TotalPasses int       `json:"totalPasses"`
	ImageData   string    `json:"imageData"` // Base64 encoded PNG
	Stats       PassStats `json:"stats"`
	IsComplete  bool      `json:"isComplete"`
	ElapsedMs   int64     `json:"elapsedMs"`
	PassMs      int64     `json:"passMs"`
}

// PassStats represents render statistics of the accumulated image
type PassStats struct {
	MeanLuminance float64 `json:"meanLuminance"`
	MeanVariance  float64 `json:"meanVariance"`
	MaxPixelValue float64 `json:"maxPixelValue"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "progress", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// handleRender handles progressive rendering requests with SSE
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)
	ctx := r.Context()

	// Single writer goroutine; the handler waits for it before returning
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(ctx, w, sseEventChan)
	}()
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.renders.WithLabelValues("invalid").Inc()
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}
	if !s.sceneAllowed(req.Scene) {
		s.renders.WithLabelValues("invalid").Inc()
		s.handleError(ctx, sseEventChan, "Unknown scene: "+req.Scene)
		return
	}
	sceneObj, err := scene.Resolve(req.Scene, req.Width, req.Height)
	if err != nil {
		s.renders.WithLabelValues("invalid").Inc()
		s.handleError(ctx, sseEventChan, err.Error())
		return
	}

	// Console streaming stops before the event channel closes
	consoleChan := make(chan ConsoleMessage, 50)
	consoleCtx, stopConsole := context.WithCancel(ctx)
	var consoleWG sync.WaitGroup
	consoleWG.Add(1)
	go func() {
		defer consoleWG.Done()
		s.streamConsoleMessages(consoleCtx, consoleChan, sseEventChan)
	}()
	defer func() {
		stopConsole()
		consoleWG.Wait()
	}()

	opts := renderer.DefaultOptions()
	opts.Candidates = req.Candidates
	opts.Workers = s.config.Workers
	opts.Seed = req.Seed
	opts.Strategies = integrator.Strategies{LightTracing: req.LightTracing, Resampling: req.Resampling}
	opts.Logger = NewConsoleLogger(consoleChan, s.logger.Handler())

	rdr, err := renderer.New(sceneObj, opts)
	if err != nil {
		s.renders.WithLabelValues("invalid").Inc()
		s.handleError(ctx, sseEventChan, err.Error())
		return
	}

	s.active.Inc()
	defer s.active.Dec()

	progressive := renderer.NewProgressive(rdr, renderer.ProgressiveConfig{
		Iterations: req.Iterations,
		Gamma:      req.Gamma,
	})
	startTime := time.Now()
	passChan, errChan := progressive.RenderProgressive(ctx)
	for result := range passChan {
		s.handlePassComplete(ctx, sseEventChan, rdr.RunID().String(), result, req, startTime)
	}

	if err := <-errChan; err != nil {
		if errors.Is(err, context.Canceled) {
			s.renders.WithLabelValues("cancelled").Inc()
			return
		}
		s.renders.WithLabelValues("failed").Inc()
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Rendering failed: %v", err))
		return
	}

	s.renders.WithLabelValues("completed").Inc()
	select {
	case sseEventChan <- SSEEvent{Type: "complete", Data: "Rendering completed"}:
	case <-ctx.Done():
	}
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents writes events until the channel closes or the client leaves
func (s *Server) writeSSEEvents(ctx context.Context, w http.ResponseWriter, sseEventChan <-chan SSEEvent) {
	for {
		select {
		case event, ok := <-sseEventChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				// Client disconnected during write
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-ctx.Done():
			return
		}
	}
}

// streamConsoleMessages forwards console messages as SSE events
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, sseEventChan chan<- SSEEvent) {
	for {
		select {
		case consoleMsg := <-consoleChan:
			data, err := json.Marshal(consoleMsg)
			if err != nil {
				s.logger.Error("failed to marshal console message", "error", err)
				continue
			}
			select {
			case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
			case <-ctx.Done():
				return
			default:
				// Channel full, skip message to avoid blocking
			}

		case <-ctx.Done():
			return
		}
	}
}

// handlePassComplete encodes the accumulated image and sends a progress event
func (s *Server) handlePassComplete(ctx context.Context, sseEventChan chan<- SSEEvent, runID string, result renderer.PassResult, req *RenderRequest, startTime time.Time) {
	imageData, err := imageToBase64PNG(result.Image, req.Gamma)
	if err != nil {
		s.logger.Error("failed to encode pass image", "pass", result.PassNumber, "error", err)
		return
	}

	update := ProgressUpdate{
		RunID:       runID,
		PassNumber:  result.PassNumber,
		TotalPasses: req.Iterations,
		ImageData:   imageData,
		Stats: PassStats{
			MeanLuminance: result.Stats.Mean.Luminance(),
			MeanVariance:  result.Stats.MeanVariance,
			MaxPixelValue: result.Stats.MaxPixelValue,
		},
		IsComplete: result.IsLast,
		ElapsedMs:  time.Since(startTime).Milliseconds(),
		PassMs:     result.Duration.Milliseconds(),
	}
	data, err := json.Marshal(update)
	if err != nil {
		s.logger.Error("failed to marshal pass update", "error", err)
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: "progress", Data: string(data)}:
	case <-ctx.Done():
	}
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	query := r.URL.Query()
	req := &RenderRequest{Scene: query.Get("scene")}
	if req.Scene == "" {
		req.Scene = "cornell"
	}

	var err error
	if req.Width, err = parseIntParam(query, "width", 256, 1, 2000); err != nil {
		return nil, err
	}
	if req.Height, err = parseIntParam(query, "height", 256, 1, 2000); err != nil {
		return nil, err
	}
	if req.Iterations, err = parseIntParam(query, "iterations", 16, 1, 10000); err != nil {
		return nil, err
	}
	if req.Candidates, err = parseIntParam(query, "candidates", 200, 1, 100000); err != nil {
		return nil, err
	}
	seed, err := parseIntParam(query, "seed", 0, 0, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	req.Seed = uint64(seed)
	if req.LightTracing, err = parseBoolParam(query, "lightTracing", true); err != nil {
		return nil, err
	}
	if req.Resampling, err = parseBoolParam(query, "resampling", true); err != nil {
		return nil, err
	}
	if req.Gamma, err = parseFloatParam(query, "gamma", 2.2, 1, 4); err != nil {
		return nil, err
	}

	if req.Width*req.Height > 800*600 && req.Iterations > 100 {
		s.logger.Warn("large image with many iterations may render slowly",
			"width", req.Width, "height", req.Height, "iterations", req.Iterations)
	}
	return req, nil
}

// imageToBase64PNG converts an image to base64-encoded PNG
func imageToBase64PNG(img *renderer.Image, gamma float64) (string, error) {
	var buf bytes.Buffer
	if err := img.WritePNG(&buf, gamma); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan<- SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
