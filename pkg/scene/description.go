package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/geometry"
	"github.com/df07/go-resampling-bdpt/pkg/material"
)

// ErrInvalidScene is returned for scene descriptions that cannot be rendered
var ErrInvalidScene = errors.New("invalid scene description")

// CameraDescription is the JSON form of geometry.CameraConfig
type CameraDescription struct {
	Center     core.Vec3 `json:"center"`
	LookAt     core.Vec3 `json:"lookAt"`
	Up         core.Vec3 `json:"up"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	VFov       float64   `json:"vfov"`
	LensRadius float64   `json:"lensRadius,omitempty"`
}

// SphereDescription is a sphere with a diffuse or emissive material.
// Color is the albedo, or the radiant exitance when Emissive is set.
type SphereDescription struct {
	Center   core.Vec3 `json:"center"`
	Radius   float64   `json:"radius"`
	Color    core.Vec3 `json:"color"`
	Emissive bool      `json:"emissive,omitempty"`
}

// Description is a serializable scene
type Description struct {
	Name    string              `json:"name,omitempty"`
	Summary string              `json:"description,omitempty"`
	Camera  CameraDescription   `json:"camera"`
	Spheres []SphereDescription `json:"spheres"`
}

// Load reads a JSON scene description from a file and builds it
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()

	desc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return desc.Build()
}

// Decode parses a JSON scene description
func Decode(r io.Reader) (Description, error) {
	var desc Description
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&desc); err != nil {
		return Description{}, fmt.Errorf("decode scene: %w", err)
	}
	return desc, nil
}

// Encode writes the description as indented JSON
func (d Description) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// Validate checks the description for values the renderer cannot handle
func (d Description) Validate() error {
	c := d.Camera
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrInvalidScene, c.Width, c.Height)
	}
	if c.VFov <= 0 || c.VFov >= 180 {
		return fmt.Errorf("%w: vfov %v out of range (0, 180)", ErrInvalidScene, c.VFov)
	}
	if c.LensRadius < 0 {
		return fmt.Errorf("%w: negative lens radius %v", ErrInvalidScene, c.LensRadius)
	}
	if c.LookAt.Subtract(c.Center).LengthSquared() == 0 {
		return fmt.Errorf("%w: camera center equals look-at point", ErrInvalidScene)
	}

	emitters := 0
	for i, s := range d.Spheres {
		if s.Radius <= 0 {
			return fmt.Errorf("%w: sphere %d has radius %v", ErrInvalidScene, i, s.Radius)
		}
		if s.Color.X < 0 || s.Color.Y < 0 || s.Color.Z < 0 {
			return fmt.Errorf("%w: sphere %d has negative color %v", ErrInvalidScene, i, s.Color)
		}
		if s.Emissive && s.Color.Luminance() > 0 {
			emitters++
		}
	}
	if emitters == 0 {
		return fmt.Errorf("%w: no emissive sphere", ErrInvalidScene)
	}
	return nil
}

// Build validates the description and creates the scene
func (d Description) Build() (*Scene, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	camera := geometry.NewCamera(geometry.CameraConfig{
		Center:     d.Camera.Center,
		LookAt:     d.Camera.LookAt,
		Up:         d.Camera.Up,
		Width:      d.Camera.Width,
		Height:     d.Camera.Height,
		VFov:       d.Camera.VFov,
		LensRadius: d.Camera.LensRadius,
	})

	spheres := make([]*geometry.Sphere, 0, len(d.Spheres))
	for _, s := range d.Spheres {
		var m material.Material
		if s.Emissive {
			m = material.NewEmissive(s.Color)
		} else {
			m = material.NewLambertian(s.Color)
		}
		spheres = append(spheres, geometry.NewSphere(s.Center, s.Radius, m))
	}
	return NewScene(camera, spheres...), nil
}
