package core

import "math"

// MinCosine is the grazing threshold below which a direction is considered degenerate
const MinCosine = 1e-6

// Direction is a unit vector paired with its cosine against a local normal.
// Directions that are zero length or graze the surface are invalid; an
// invalid direction reports a zero cosine so every product built on it vanishes.
type Direction struct {
	w     Vec3
	cos   float64
	valid bool
}

// NewDirection normalizes w and measures it against the unit normal n
func NewDirection(w, n Vec3) Direction {
	length := w.Length()
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return Direction{}
	}
	w = w.Multiply(1 / length)
	cos := w.Dot(n)
	if math.Abs(cos) < MinCosine {
		return Direction{w: w}
	}
	return Direction{w: w, cos: cos, valid: true}
}

// NewNormalDirection returns the direction along the unit normal n itself (cosine 1)
func NewNormalDirection(n Vec3) Direction {
	return Direction{w: n, cos: 1, valid: true}
}

// Valid reports whether the direction can be used for shading
func (d Direction) Valid() bool {
	return d.valid
}

// Vec returns the unit vector
func (d Direction) Vec() Vec3 {
	return d.w
}

// Cos returns the signed cosine against the local normal, zero when invalid
func (d Direction) Cos() float64 {
	return d.cos
}

// AbsCos returns |cos|, zero when invalid
func (d Direction) AbsCos() float64 {
	return math.Abs(d.cos)
}

// UpperHemisphere reports whether the direction is valid and on the normal's side
func (d Direction) UpperHemisphere() bool {
	return d.valid && d.cos > 0
}

// LowerHemisphere reports whether the direction is valid and opposite the normal
func (d Direction) LowerHemisphere() bool {
	return d.valid && d.cos < 0
}

// Negate returns the reversed direction measured against the same normal
func (d Direction) Negate() Direction {
	return Direction{w: d.w.Negate(), cos: -d.cos, valid: d.valid}
}
