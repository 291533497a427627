// Package integrator builds camera and light sub-paths, maintains the
// per-iteration spatial cache and evaluates the resampling-aware
// multiple-importance weights of bidirectional path tracing.
package integrator

import (
	"github.com/df07/go-resampling-bdpt/pkg/kdtree"
)

// Strategies selects which families of connection strategies take part in
// the estimate. Path tracing (s=0) is always enabled.
type Strategies struct {
	LightTracing bool // t=1 splats
	Resampling   bool // s>=1, t>=2 resampled connections
}

// AllStrategies enables every strategy family
func AllStrategies() Strategies {
	return Strategies{LightTracing: true, Resampling: true}
}

// Scratch is worker-local storage reused across work items. It must not be
// shared between goroutines.
type Scratch struct {
	neighbors []kdtree.Neighbor[int32]
	pdfs      []float64
	counts    []float64
}

// NewScratch allocates scratch space
func NewScratch() *Scratch {
	return &Scratch{
		neighbors: make([]kdtree.Neighbor[int32], 0, NumNearestCaches),
		pdfs:      make([]float64, 0, 16),
		counts:    make([]float64, 0, 16),
	}
}

func (s *Scratch) stack(n int) ([]float64, []float64) {
	if cap(s.pdfs) < n {
		s.pdfs = make([]float64, n)
		s.counts = make([]float64, n)
	}
	s.pdfs = s.pdfs[:n]
	s.counts = s.counts[:n]
	return s.pdfs, s.counts
}
