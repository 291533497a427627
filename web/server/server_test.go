package server

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

func newTestServer(t *testing.T, scenesDir string) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(Config{
		ScenesDir: scenesDir,
		Workers:   2,
		Logger:    slog.New(discardHandler()),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

// readEvents parses a complete SSE stream into (type, data) pairs
func readEvents(t *testing.T, body io.Reader) []SSEEvent {
	t.Helper()
	var events []SSEEvent
	var current SSEEvent
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1<<20), 1<<24)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.Type != "" {
				events = append(events, current)
			}
			current = SSEEvent{}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Failed to read event stream: %v", err)
	}
	return events
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("Expected ok, got %d %v", resp.StatusCode, body)
	}
}

func TestHandleScenes(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "tiny-box.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := scene.CornellDescription(8, 8).Encode(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, ts := newTestServer(t, dir)
	resp, err := http.Get(ts.URL + "/api/scenes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body ScenesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Builtin) != len(scene.Builtins()) {
		t.Errorf("Expected %d builtin scenes, got %d", len(scene.Builtins()), len(body.Builtin))
	}
	if len(body.Files) != 1 || body.Files[0].DisplayName != "Tiny Box" {
		t.Errorf("Expected one scene file, got %+v", body.Files)
	}
}

func TestHandleRender_StreamsEveryPass(t *testing.T) {
	s, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + "/api/render?scene=cornell&width=8&height=8&iterations=3&candidates=8&seed=4")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected event stream, got %q", ct)
	}

	var progress []ProgressUpdate
	var complete bool
	for _, event := range readEvents(t, resp.Body) {
		switch event.Type {
		case "progress":
			var update ProgressUpdate
			if err := json.Unmarshal([]byte(event.Data), &update); err != nil {
				t.Fatalf("Failed to decode progress update: %v", err)
			}
			progress = append(progress, update)
		case "complete":
			complete = true
		case "error":
			t.Fatalf("Unexpected error event: %s", event.Data)
		}
	}

	if len(progress) != 3 {
		t.Fatalf("Expected 3 progress events, got %d", len(progress))
	}
	for i, update := range progress {
		if update.PassNumber != i+1 || update.TotalPasses != 3 {
			t.Errorf("Event %d: expected pass %d of 3, got %d of %d", i, i+1, update.PassNumber, update.TotalPasses)
		}
		if update.ImageData == "" || update.RunID == "" {
			t.Errorf("Event %d: expected image data and run id", i)
		}
	}
	if !progress[2].IsComplete {
		t.Error("Expected the last pass to be marked complete")
	}
	if !complete {
		t.Error("Expected a complete event")
	}
	if got := testutil.ToFloat64(s.renders.WithLabelValues("completed")); got != 1 {
		t.Errorf("Expected 1 completed render, got %v", got)
	}
}

func TestHandleRender_InvalidRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"Bad width", "width=0"},
		{"Bad iterations", "iterations=abc"},
		{"Bad flag", "resampling=maybe"},
		{"Unknown scene", "scene=nope"},
		{"Scene outside directory", "scene=/etc/passwd.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ts := newTestServer(t, "")
			resp, err := http.Get(ts.URL + "/api/render?" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			events := readEvents(t, resp.Body)
			if len(events) != 1 || events[0].Type != "error" {
				t.Fatalf("Expected a single error event, got %+v", events)
			}
			if got := testutil.ToFloat64(s.renders.WithLabelValues("invalid")); got != 1 {
				t.Errorf("Expected 1 invalid render, got %v", got)
			}
		})
	}
}

func TestHandleInspect(t *testing.T) {
	_, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + "/api/inspect?scene=cornell&width=16&height=16&x=8&y=8&seed=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body InspectResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Vertices) < 2 {
		t.Fatalf("Expected the center ray to hit the box, got %d vertices", len(body.Vertices))
	}
	if body.Vertices[0].Kind != "lens" {
		t.Errorf("Expected lens vertex first, got %q", body.Vertices[0].Kind)
	}
	if body.Vertices[1].MaterialType == "" || body.Vertices[1].Color == "" {
		t.Errorf("Expected material info on the first hit, got %+v", body.Vertices[1])
	}

	resp, err = http.Get(ts.URL + "/api/inspect?width=4&x=9")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for out-of-range pixel, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, ts := newTestServer(t, "")
	s.renders.WithLabelValues("completed").Inc()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `rbdpt_server_renders_total{outcome="completed"} 1`) {
		t.Errorf("Expected render counter in metrics output, got:\n%s", body)
	}
}
