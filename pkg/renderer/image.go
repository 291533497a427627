package renderer

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/df07/go-resampling-bdpt/pkg/core"
)

// Image is a linear RGB image stored row-major with y=0 the top row
type Image struct {
	Width  int
	Height int
	Pix    []core.Vec3
}

// NewImage creates a black image
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]core.Vec3, width*height)}
}

// At returns the pixel at (x, y)
func (img *Image) At(x, y int) core.Vec3 {
	return img.Pix[y*img.Width+x]
}

// Set stores the pixel at (x, y)
func (img *Image) Set(x, y int, c core.Vec3) {
	img.Pix[y*img.Width+x] = c
}

// Mean returns the average pixel value
func (img *Image) Mean() core.Vec3 {
	var sum core.Vec3
	for _, c := range img.Pix {
		sum = sum.Add(c)
	}
	if len(img.Pix) == 0 {
		return sum
	}
	return sum.Multiply(1 / float64(len(img.Pix)))
}

// ToRGBA gamma-corrects and quantizes the image to 8 bits per channel
func (img *Image) ToRGBA(gamma float64) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			out.SetRGBA(x, y, vec3ToColor(img.At(x, y), gamma))
		}
	}
	return out
}

// WritePNG encodes the gamma-corrected image as PNG
func (img *Image) WritePNG(w io.Writer, gamma float64) error {
	return png.Encode(w, img.ToRGBA(gamma))
}

func vec3ToColor(c core.Vec3, gamma float64) color.RGBA {
	c = c.GammaCorrect(gamma).Clamp(0, 1)
	return color.RGBA{
		R: uint8(255*c.X + 0.5),
		G: uint8(255*c.Y + 0.5),
		B: uint8(255*c.Z + 0.5),
		A: 255,
	}
}
