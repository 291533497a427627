package renderer

import (
	"runtime"
	"sync/atomic"

	"github.com/df07/go-resampling-bdpt/pkg/core"
)

// SplatBuffer accumulates light tracing contributions per pixel. Each pixel
// has its own spin lock, so concurrent splats only contend when they land on
// the same pixel.
type SplatBuffer struct {
	width  int
	pixels []core.Vec3
	locks  []atomic.Bool
}

// NewSplatBuffer creates a zeroed buffer for a width×height image
func NewSplatBuffer(width, height int) *SplatBuffer {
	return &SplatBuffer{
		width:  width,
		pixels: make([]core.Vec3, width*height),
		locks:  make([]atomic.Bool, width*height),
	}
}

// Add accumulates c into pixel (x, y); safe for concurrent use
func (sb *SplatBuffer) Add(x, y int, c core.Vec3) {
	i := y*sb.width + x
	for !sb.locks[i].CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	sb.pixels[i] = sb.pixels[i].Add(c)
	sb.locks[i].Store(false)
}

// At returns the accumulated value of pixel index i. Not synchronized with
// Add; read only after the splatting goroutines have finished.
func (sb *SplatBuffer) At(i int) core.Vec3 {
	return sb.pixels[i]
}

// Reset zeroes every pixel
func (sb *SplatBuffer) Reset() {
	clear(sb.pixels)
}
