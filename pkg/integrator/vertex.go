package integrator

import (
	"fmt"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/material"
)

const (
	// NumNearestCaches is the number of previous-iteration cache points
	// consulted around each vertex
	NumNearestCaches = 3

	// RussianRouletteThreshold is the vertex count from which every
	// further sampling step is subject to Russian roulette
	RussianRouletteThreshold = 5

	// GeometryClamp bounds the geometry term used by resampling weights
	GeometryClamp = 1e6

	// ResampleClamp is the lower bound of the Q/L ratio in resampled strategy counts
	ResampleClamp = 1e-3
)

// VertexKind distinguishes the roles a path vertex can take
type VertexKind uint8

const (
	// SurfaceVertex lies on scene geometry (including emitters)
	SurfaceVertex VertexKind = iota
	// LensVertex is the first vertex of a camera path
	LensVertex
	// LightSentinel precedes the first real vertex of a light path
	LightSentinel
)

func (k VertexKind) String() string {
	switch k {
	case SurfaceVertex:
		return "surface"
	case LensVertex:
		return "lens"
	case LightSentinel:
		return "light-sentinel"
	default:
		return fmt.Sprintf("VertexKind(%d)", uint8(k))
	}
}

// Vertex holds what both sub-path kinds record at a scattering event.
//
// Prev points toward the preceding vertex of the same sub-path and Next is
// the sampled continuation (invalid at a terminal vertex). Both are measured
// against Normal. For a camera vertex Prev is the outgoing direction wo; for
// a light vertex it is the incoming direction wi.
type Vertex struct {
	Kind     VertexKind
	Point    core.Vec3
	Normal   core.Vec3
	Material material.Material // nil for lens and sentinel vertices
	BRDF     material.BRDF
	Prev     core.Direction
	Next     core.Direction

	Throughput core.Vec3
	PdfForward float64 // area density of generating this vertex from its predecessor

	pdfBackward   float64
	pdfBackwardRR float64
	hasBackward   bool

	caches    [NumNearestCaches]int32
	numCaches int
}

// IsEmissive reports whether the vertex lies on an emitter
func (v *Vertex) IsEmissive() bool {
	return v.Kind == SurfaceVertex && v.Material != nil && v.Material.IsEmissive()
}

// PdfBackward returns the area density of generating this vertex from its
// successor, with or without the roulette factor of that step. It panics if
// the path has not been annotated that far.
func (v *Vertex) PdfBackward(rr bool) float64 {
	if !v.hasBackward {
		panic(fmt.Sprintf("backward pdf read on unannotated %s vertex", v.Kind))
	}
	if rr {
		return v.pdfBackwardRR
	}
	return v.pdfBackward
}

func (v *Vertex) setPdfBackward(pdf, pdfRR float64) {
	v.pdfBackward = pdf
	v.pdfBackwardRR = pdfRR
	v.hasBackward = true
}

// Caches returns the indices of the neighbouring cache points of the
// previous iteration, nearest first
func (v *Vertex) Caches() []int32 {
	return v.caches[:v.numCaches]
}

// CameraVertex is a vertex of a camera sub-path
type CameraVertex struct {
	Vertex

	fgBackward core.Vec3
	fgv        [NumNearestCaches]core.Vec3
	hasFG      bool
}

// FGBackward returns f·|cos|·|cos|/d² of the step from the successor back
// to this vertex, as used when the successor acts as a light endpoint
func (v *CameraVertex) FGBackward() core.Vec3 {
	if !v.hasFG {
		panic("FG read on unannotated camera vertex")
	}
	return v.fgBackward
}

// FGV returns the clamped, visibility-tested contribution factor from the
// successor toward neighbour cache j of this vertex
func (v *CameraVertex) FGV(j int) core.Vec3 {
	if !v.hasFG {
		panic("FGV read on unannotated camera vertex")
	}
	return v.fgv[j]
}

// LightVertex is a vertex of a light sub-path
type LightVertex struct {
	Vertex

	emittedFGV    [NumNearestCaches]float64
	hasEmittedFGV bool
}

// EmittedFGV returns luminance(Throughput of the predecessor × FGV toward
// neighbour cache j of this vertex)
func (v *LightVertex) EmittedFGV(j int) float64 {
	if !v.hasEmittedFGV {
		panic("emitted FGV read on unannotated light vertex")
	}
	return v.emittedFGV[j]
}

// russianRouletteProbability returns the survival probability of a sampling
// step with BRDF value f, cosine cos and solid-angle density pdf
func russianRouletteProbability(f core.Vec3, cos, pdf float64) float64 {
	if pdf <= 0 {
		return 0
	}
	return min(1, f.Luminance()*cos/pdf)
}

// withRoulette multiplies pdf by the survival probability of the step when
// the step is taken at a vertex subject to roulette
func withRoulette(pdf float64, f core.Vec3, cos float64, applies bool) float64 {
	if !applies {
		return pdf
	}
	return pdf * russianRouletteProbability(f, cos, pdf)
}
