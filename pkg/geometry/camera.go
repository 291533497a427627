package geometry

import (
	"math"

	"github.com/df07/go-resampling-bdpt/pkg/core"
)

// CameraConfig describes a thin-lens camera focused on the LookAt plane
type CameraConfig struct {
	Center     core.Vec3 // Eye position, center of the lens
	LookAt     core.Vec3 // Point in the plane of focus
	Up         core.Vec3
	Width      int     // Image width in pixels
	Height     int     // Image height in pixels
	VFov       float64 // Vertical field of view in degrees
	LensRadius float64 // 0 for a pinhole
}

// Camera generates primary rays and evaluates the importance function used
// to splat light-traced paths. Pixel (0, 0) is the top-left corner.
type Camera struct {
	config CameraConfig

	forward, right, up core.Vec3
	focus              float64
	screenWidth        float64
	screenHeight       float64
	topLeft            core.Vec3

	pdfPixel float64
	pdfLens  float64
}

// NewCamera creates a camera from its configuration
func NewCamera(config CameraConfig) *Camera {
	toTarget := config.LookAt.Subtract(config.Center)
	forward := toTarget.Normalize()
	right := forward.Cross(config.Up).Normalize()
	up := right.Cross(forward)

	focus := toTarget.Length()
	screenHeight := 2 * focus * math.Tan(config.VFov*math.Pi/360)
	screenWidth := screenHeight * float64(config.Width) / float64(config.Height)

	topLeft := config.Center.
		Add(forward.Multiply(focus)).
		Subtract(right.Multiply(screenWidth / 2)).
		Add(up.Multiply(screenHeight / 2))

	pdfLens := 1.0
	if config.LensRadius > 0 {
		pdfLens = 1 / (math.Pi * config.LensRadius * config.LensRadius)
	}

	return &Camera{
		config:       config,
		forward:      forward,
		right:        right,
		up:           up,
		focus:        focus,
		screenWidth:  screenWidth,
		screenHeight: screenHeight,
		topLeft:      topLeft,
		pdfPixel:     float64(config.Width*config.Height) * focus * focus / (screenWidth * screenHeight),
		pdfLens:      pdfLens,
	}
}

// Width returns the image width in pixels
func (c *Camera) Width() int { return c.config.Width }

// Height returns the image height in pixels
func (c *Camera) Height() int { return c.config.Height }

// PixelCount returns width×height
func (c *Camera) PixelCount() int { return c.config.Width * c.config.Height }

// Forward returns the viewing direction, which doubles as the lens normal
func (c *Camera) Forward() core.Vec3 { return c.forward }

// Config returns the configuration the camera was built from
func (c *Camera) Config() CameraConfig { return c.config }

// SampleRay generates a ray through a jittered position inside pixel (x, y)
// from a uniformly sampled lens point
func (c *Camera) SampleRay(x, y int, sampler core.Sampler) core.Ray {
	lens := core.SampleUniformDisk(sampler.Get2D())
	origin := c.config.Center
	if c.config.LensRadius > 0 {
		origin = origin.
			Add(c.right.Multiply(lens.X * c.config.LensRadius)).
			Add(c.up.Multiply(lens.Y * c.config.LensRadius))
	}

	jitter := sampler.Get2D()
	u := (float64(x) + jitter.X) / float64(c.config.Width)
	v := (float64(y) + jitter.Y) / float64(c.config.Height)
	target := c.topLeft.
		Add(c.right.Multiply(u * c.screenWidth)).
		Subtract(c.up.Multiply(v * c.screenHeight))

	return core.NewRay(origin, target.Subtract(origin).Normalize())
}

// LensPDF returns the area density of the lens point (1 for a pinhole)
func (c *Camera) LensPDF() float64 {
	return c.pdfLens
}

// DirectionPDF returns the solid-angle density of generating w from a lens
// point, w measured against Forward
func (c *Camera) DirectionPDF(w core.Direction) float64 {
	cos := w.Cos()
	if cos <= 0 {
		return 0
	}
	return c.pdfPixel / (cos * cos * cos)
}

// Importance returns the emitted importance We toward w
func (c *Camera) Importance(w core.Direction) float64 {
	cos := w.Cos()
	if cos <= 0 {
		return 0
	}
	return c.pdfLens * c.pdfPixel / (cos * cos * cos * cos)
}

// PixelFor returns the pixel seen from lensPoint along w, if any
func (c *Camera) PixelFor(lensPoint core.Vec3, w core.Direction) (int, int, bool) {
	cos := w.Vec().Dot(c.forward)
	if !w.Valid() || cos <= 0 {
		return 0, 0, false
	}

	local := lensPoint.Add(w.Vec().Multiply(c.focus / cos)).Subtract(c.topLeft)
	x := int(math.Floor(local.Dot(c.right) / c.screenWidth * float64(c.config.Width)))
	y := int(math.Floor(-local.Dot(c.up) / c.screenHeight * float64(c.config.Height)))
	if x < 0 || y < 0 || x >= c.config.Width || y >= c.config.Height {
		return 0, 0, false
	}
	return x, y, true
}
