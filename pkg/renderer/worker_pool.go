package renderer

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/integrator"
)

// phase identifies the stage of an iteration when deriving random streams
type phase uint64

const (
	phaseCandidates phase = iota
	phaseCamera
	phaseLight
)

// WorkerPool runs index-parallel loops over a fixed set of workers. Each
// worker owns its random stream and scratch storage.
type WorkerPool struct {
	workers []*Worker
}

// Worker holds the state a goroutine reuses from one work item to the next
type Worker struct {
	ID           int
	sampler      *core.RandomSampler
	scratch      *integrator.Scratch
	camera       integrator.CameraPath
	light        integrator.LightPath
	distribution core.Distribution[integrator.Candidate]
}

// NewWorkerPool creates a pool with numWorkers workers (0 = use CPU count)
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	wp := &WorkerPool{workers: make([]*Worker, numWorkers)}
	for i := range wp.workers {
		wp.workers[i] = &Worker{
			ID:      i,
			sampler: core.NewRandomSampler(0, 0),
			scratch: integrator.NewScratch(),
		}
	}
	return wp
}

// NumWorkers returns the number of workers in the pool
func (wp *WorkerPool) NumWorkers() int {
	return len(wp.workers)
}

// Run calls fn once for every index in [0, n) and returns when all calls
// have finished. Indices are handed out through a shared atomic cursor.
func (wp *WorkerPool) Run(n int, fn func(w *Worker, i int)) {
	var cursor atomic.Int64
	var g errgroup.Group
	for _, w := range wp.workers {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1) - 1)
				if i >= n {
					return nil
				}
				fn(w, i)
			}
		})
	}
	// fn has no error result and every goroutine returns nil, so Wait only joins
	_ = g.Wait()
}

// reseed restarts the worker's stream for one work item so the samples it
// draws do not depend on which worker picked the item up
func (w *Worker) reseed(seed uint64, iteration int, p phase, item int) {
	w.sampler.Reseed(seed, uint64(iteration)<<34|uint64(p)<<32|uint64(item))
}
