package engine

import (
	"image"
	"image/color"
)

// Device receives the drawing operations produced when a page is run.
// Coordinates handed to a device are in the input space of ctm.
type Device interface {
	// FillPath fills the path with the given color
	FillPath(path *Path, evenOdd bool, ctm Matrix, c Color, alpha float64) error

	// StrokePath strokes the path with the given color
	StrokePath(path *Path, stroke StrokeState, ctm Matrix, c Color, alpha float64) error

	// FillText paints a run of glyphs
	FillText(text *Text, ctm Matrix, c Color, alpha float64) error

	// FillImage paints img into the unit square mapped through ctm.
	// The image's top left corner lands on (0, 0) of the unit square.
	FillImage(img image.Image, ctm Matrix, alpha float64) error

	// Close flushes pending output. No calls may follow Close.
	Close() error

	// Drop releases the device
	Drop()
}

// Color represents an RGB color
type Color struct {
	R, G, B uint8
}

// Black is the initial fill and stroke color
var Black = Color{}

// NRGBA returns the color with the given opacity applied.
func (c Color) NRGBA(alpha float64) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: unitToByte(alpha)}
}

// GrayColor converts a gray level in [0, 1] to a Color
func GrayColor(g float64) Color {
	v := unitToByte(g)
	return Color{R: v, G: v, B: v}
}

// RGBColor converts components in [0, 1] to a Color
func RGBColor(r, g, b float64) Color {
	return Color{R: unitToByte(r), G: unitToByte(g), B: unitToByte(b)}
}

// CMYKColor converts CMYK components in [0, 1] to a Color
func CMYKColor(c, m, y, k float64) Color {
	return RGBColor((1-c)*(1-k), (1-m)*(1-k), (1-y)*(1-k))
}

func unitToByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v*255 + 0.5)
}

// PathOp identifies the kind of a path element
type PathOp int

const (
	PathMoveTo PathOp = iota
	PathLineTo
	PathCurveTo
	PathClose
)

// PathElement represents an element in a path
type PathElement struct {
	Op     PathOp
	Points []Point
}

// Path is a sequence of subpaths in user space
type Path struct {
	Elements []PathElement
	current  Point
	start    Point
}

// MoveTo begins a new subpath
func (p *Path) MoveTo(x, y float64) {
	p.Elements = append(p.Elements, PathElement{Op: PathMoveTo, Points: []Point{{X: x, Y: y}}})
	p.current = Point{X: x, Y: y}
	p.start = p.current
}

// LineTo appends a straight segment
func (p *Path) LineTo(x, y float64) {
	if len(p.Elements) == 0 {
		p.MoveTo(x, y)
		return
	}
	p.Elements = append(p.Elements, PathElement{Op: PathLineTo, Points: []Point{{X: x, Y: y}}})
	p.current = Point{X: x, Y: y}
}

// CurveTo appends a cubic Bézier segment
func (p *Path) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	if len(p.Elements) == 0 {
		p.MoveTo(x1, y1)
	}
	p.Elements = append(p.Elements, PathElement{
		Op:     PathCurveTo,
		Points: []Point{{X: x1, Y: y1}, {X: x2, Y: y2}, {X: x3, Y: y3}},
	})
	p.current = Point{X: x3, Y: y3}
}

// Close closes the current subpath
func (p *Path) Close() {
	if len(p.Elements) == 0 {
		return
	}
	p.Elements = append(p.Elements, PathElement{Op: PathClose})
	p.current = p.start
}

// Rect appends a closed rectangle subpath
func (p *Path) Rect(x, y, w, h float64) {
	p.MoveTo(x, y)
	p.LineTo(x+w, y)
	p.LineTo(x+w, y+h)
	p.LineTo(x, y+h)
	p.Close()
}

// Current returns the current point
func (p *Path) Current() Point {
	return p.current
}

// IsEmpty reports whether the path has no elements
func (p *Path) IsEmpty() bool {
	return p == nil || len(p.Elements) == 0
}

// Bounds returns the bounding box of the path's points after applying m.
// Curve control points are included.
func (p *Path) Bounds(m Matrix) Rect {
	var r Rect
	first := true
	for _, el := range p.Elements {
		for _, pt := range el.Points {
			x, y := m.Transform(pt.X, pt.Y)
			if first {
				r = Rect{X0: x, Y0: y, X1: x, Y1: y}
				first = false
				continue
			}
			r.X0, r.Y0 = min(r.X0, x), min(r.Y0, y)
			r.X1, r.Y1 = max(r.X1, x), max(r.Y1, y)
		}
	}
	return r
}

// StrokeState holds the line style used by StrokePath
type StrokeState struct {
	LineWidth  float64
	LineCap    int
	LineJoin   int
	MiterLimit float64
	Dash       []float64
	DashPhase  float64
}

// DefaultStrokeState returns the initial stroke state of a page
func DefaultStrokeState() StrokeState {
	return StrokeState{LineWidth: 1, MiterLimit: 10}
}

// Glyph is a single positioned character of a text run
type Glyph struct {
	// Unicode is the text the glyph stands for; it may be empty or hold
	// more than one rune (ligatures).
	Unicode string
	// Code is the character code from the content stream
	Code int
	// Trm maps glyph space, where one unit is one em, into user space.
	Trm Matrix
	// Advance is the horizontal advance in glyph space units
	Advance float64
}

// Text is a run of glyphs painted with the same font and render mode
type Text struct {
	FontName   string
	Glyphs     []Glyph
	RenderMode int
}

// Invisible reports whether the run paints nothing (render modes 3 and 7)
func (t *Text) Invisible() bool {
	return t.RenderMode == 3 || t.RenderMode == 7
}
