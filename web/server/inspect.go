package server

import (
	"fmt"
	"net/http"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/integrator"
	"github.com/df07/go-resampling-bdpt/pkg/material"
	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

// InspectResponse represents the JSON response for path inspection
type InspectResponse struct {
	X        int            `json:"x"`
	Y        int            `json:"y"`
	Vertices []InspectVertex `json:"vertices"`
}

// InspectVertex describes one vertex of a traced camera path
type InspectVertex struct {
	Kind         string     `json:"kind"`
	MaterialType string     `json:"materialType,omitempty"`
	Color        string     `json:"color,omitempty"`
	Point        [3]float64 `json:"point"`
	Normal       [3]float64 `json:"normal"`
	Throughput   [3]float64 `json:"throughput"`
	PdfForward   float64    `json:"pdfForward"`
}

// materialInfo names a material and its display color
func materialInfo(m material.Material) (string, string) {
	switch m := m.(type) {
	case *material.Lambertian:
		return "lambertian", hexColor(m.Albedo)
	case *material.Emissive:
		// Scale exitance down to its brightest channel
		c := m.Exitance
		if peak := max(c.X, c.Y, c.Z); peak > 1 {
			c = c.Multiply(1 / peak)
		}
		return "emissive", hexColor(c)
	default:
		return "unknown", ""
	}
}

func hexColor(c core.Vec3) string {
	clamp := func(v float64) int { return int(255 * min(1, max(0, v))) }
	return fmt.Sprintf("#%02x%02x%02x", clamp(c.X), clamp(c.Y), clamp(c.Z))
}

func vec3Array(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// inspectPixel traces one camera path through pixel (x, y) with the given seed
func inspectPixel(s *scene.Scene, x, y int, seed uint64) InspectResponse {
	builder := &integrator.PathBuilder{Scene: s}
	var path integrator.CameraPath
	builder.TraceCamera(&path, x, y, core.NewRandomSampler(seed, uint64(y*s.Camera.Width()+x)))

	response := InspectResponse{X: x, Y: y, Vertices: make([]InspectVertex, 0, path.Len())}
	for i := 0; i < path.Len(); i++ {
		v := path.At(i)
		iv := InspectVertex{
			Kind:       v.Kind.String(),
			Point:      vec3Array(v.Point),
			Normal:     vec3Array(v.Normal),
			Throughput: vec3Array(v.Throughput),
			PdfForward: v.PdfForward,
		}
		if v.Material != nil {
			iv.MaterialType, iv.Color = materialInfo(v.Material)
		}
		response.Vertices = append(response.Vertices, iv)
	}
	return response
}

// inspectRequest is a parsed /api/inspect query
type inspectRequest struct {
	scene         string
	width, height int
	x, y          int
	seed          uint64
}

func parseInspectRequest(r *http.Request) (inspectRequest, error) {
	query := r.URL.Query()
	req := inspectRequest{scene: query.Get("scene")}
	if req.scene == "" {
		req.scene = "cornell"
	}

	var err error
	if req.width, err = parseIntParam(query, "width", 256, 1, 2000); err != nil {
		return req, err
	}
	if req.height, err = parseIntParam(query, "height", 256, 1, 2000); err != nil {
		return req, err
	}
	if req.x, err = parseIntParam(query, "x", req.width/2, 0, req.width-1); err != nil {
		return req, err
	}
	if req.y, err = parseIntParam(query, "y", req.height/2, 0, req.height-1); err != nil {
		return req, err
	}
	seed, err := parseIntParam(query, "seed", 0, 0, 1<<31-1)
	req.seed = uint64(seed)
	return req, err
}

// handleInspect traces a single camera path and returns its vertices
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	req, err := parseInspectRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !s.sceneAllowed(req.scene) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown scene: " + req.scene})
		return
	}

	sceneObj, err := scene.Resolve(req.scene, req.width, req.height)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, inspectPixel(sceneObj, req.x, req.y, req.seed))
}
