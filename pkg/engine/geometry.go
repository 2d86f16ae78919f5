package engine

import "math"

// epsilon used when snapping rectangles to the pixel grid
const roundEpsilon = 0.001

// Matrix is a 2D affine transformation [A B C D E F].
// A point is transformed as x' = A*x + C*y + E, y' = B*x + D*y + F.
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity is the identity matrix
var Identity = Matrix{A: 1, D: 1}

// Scale creates a scaling matrix
func Scale(sx, sy float64) Matrix {
	return Matrix{A: sx, D: sy}
}

// Translate creates a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{A: 1, D: 1, E: tx, F: ty}
}

// Rotate creates a rotation matrix for the given angle in degrees.
// Right angles are produced exactly.
func Rotate(degrees float64) Matrix {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	switch d {
	case 0:
		return Identity
	case 90:
		return Matrix{A: 0, B: 1, C: -1, D: 0}
	case 180:
		return Matrix{A: -1, B: 0, C: 0, D: -1}
	case 270:
		return Matrix{A: 0, B: -1, C: 1, D: 0}
	}
	s, c := math.Sincos(d * math.Pi / 180)
	return Matrix{A: c, B: s, C: -s, D: c}
}

// Multiply returns the matrix that applies m first and then other.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.C,
		B: m.A*other.B + m.B*other.D,
		C: m.C*other.A + m.D*other.C,
		D: m.C*other.B + m.D*other.D,
		E: m.E*other.A + m.F*other.C + other.E,
		F: m.E*other.B + m.F*other.D + other.F,
	}
}

// PreRotate returns m with a rotation applied before it.
func (m Matrix) PreRotate(degrees float64) Matrix {
	return Rotate(degrees).Multiply(m)
}

// Transform applies the matrix transformation to a point
func (m Matrix) Transform(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// TransformPoint applies the matrix to p
func (m Matrix) TransformPoint(p Point) Point {
	x, y := m.Transform(p.X, p.Y)
	return Point{X: x, Y: y}
}

// TransformRect returns the bounding box of r after transformation.
func (m Matrix) TransformRect(r Rect) Rect {
	if r.IsEmpty() {
		return r
	}
	x0, y0 := m.Transform(r.X0, r.Y0)
	x1, y1 := m.Transform(r.X1, r.Y0)
	x2, y2 := m.Transform(r.X0, r.Y1)
	x3, y3 := m.Transform(r.X1, r.Y1)
	return Rect{
		X0: min(x0, x1, x2, x3),
		Y0: min(y0, y1, y2, y3),
		X1: max(x0, x1, x2, x3),
		Y1: max(y0, y1, y2, y3),
	}
}

// Expansion returns the average scale factor of the matrix.
func (m Matrix) Expansion() float64 {
	return math.Sqrt(math.Abs(m.A*m.D - m.B*m.C))
}

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Rect is a rectangle in floating point coordinates. X0/Y0 is the
// top left corner when Y grows downwards, as it does in page space.
type Rect struct {
	X0 float64 // Left
	Y0 float64 // Top
	X1 float64 // Right
	Y1 float64 // Bottom
}

// Width returns the width of the rectangle
func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

// Height returns the height of the rectangle
func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// IsEmpty reports whether the rectangle encloses no area.
func (r Rect) IsEmpty() bool {
	return r.X0 >= r.X1 || r.Y0 >= r.Y1
}

// Contains checks if a point is within the rectangle
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

// Intersect returns the intersection of two rectangles
func (r Rect) Intersect(other Rect) Rect {
	return Rect{
		X0: max(r.X0, other.X0),
		Y0: max(r.Y0, other.Y0),
		X1: min(r.X1, other.X1),
		Y1: min(r.Y1, other.Y1),
	}
}

// Union returns the smallest rectangle containing both rectangles.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	return Rect{
		X0: min(r.X0, other.X0),
		Y0: min(r.Y0, other.Y0),
		X1: max(r.X1, other.X1),
		Y1: max(r.Y1, other.Y1),
	}
}

// IRect is a rectangle on the pixel grid
type IRect struct {
	X0, Y0, X1, Y1 int
}

// Width returns the width in pixels, never negative.
func (r IRect) Width() int {
	return max(r.X1-r.X0, 0)
}

// Height returns the height in pixels, never negative.
func (r IRect) Height() int {
	return max(r.Y1-r.Y0, 0)
}

// IsEmpty reports whether the rectangle covers no pixels.
func (r IRect) IsEmpty() bool {
	return r.X0 >= r.X1 || r.Y0 >= r.Y1
}

// RoundRect snaps r outwards to the pixel grid. Edges within a thousandth
// of a pixel of a grid line are snapped inwards so that exact integer
// extents survive floating point noise.
func RoundRect(r Rect) IRect {
	return IRect{
		X0: clampInt(math.Floor(r.X0 + roundEpsilon)),
		Y0: clampInt(math.Floor(r.Y0 + roundEpsilon)),
		X1: clampInt(math.Ceil(r.X1 - roundEpsilon)),
		Y1: clampInt(math.Ceil(r.Y1 - roundEpsilon)),
	}
}

const maxSafeInt = 1 << 24

func clampInt(f float64) int {
	if f < -maxSafeInt {
		return -maxSafeInt
	}
	if f > maxSafeInt {
		return maxSafeInt
	}
	return int(f)
}
