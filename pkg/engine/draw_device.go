package engine

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// curveSteps is the number of line segments a cubic is flattened into
// when stroking.
const curveSteps = 16

var fallbackFont = sync.OnceValues(func() (*sfnt.Font, error) {
	return sfnt.Parse(goregular.TTF)
})

// drawDevice rasterizes page contents into a pixmap.
type drawDevice struct {
	transform Matrix
	dst       *image.RGBA
	origin    image.Point
	w, h      int
	buf       sfnt.Buffer
	closed    bool
}

// NewDrawDevice returns a device that paints into pix. transform is
// applied after the ctm of every drawing call.
func NewDrawDevice(transform Matrix, pix *Pixmap) Device {
	img := pix.Image()
	return &drawDevice{
		transform: transform,
		dst:       img,
		origin:    img.Rect.Min,
		w:         img.Rect.Dx(),
		h:         img.Rect.Dy(),
	}
}

func (d *drawDevice) empty() bool {
	return d.closed || d.w <= 0 || d.h <= 0
}

// point maps user space to rasterizer space
func (d *drawDevice) point(m Matrix, x, y float64) (float32, float32) {
	px, py := m.Transform(x, y)
	return float32(px - float64(d.origin.X)), float32(py - float64(d.origin.Y))
}

func (d *drawDevice) rasterizer() *vector.Rasterizer {
	z := vector.NewRasterizer(d.w, d.h)
	z.DrawOp = draw.Over
	return z
}

func (d *drawDevice) paint(z *vector.Rasterizer, c color.Color) {
	z.Draw(d.dst, d.dst.Rect, image.NewUniform(c), image.Point{})
}

// FillPath fills with the nonzero rule. The rasterizer has no even-odd
// mode, so evenOdd is accepted and ignored.
func (d *drawDevice) FillPath(path *Path, evenOdd bool, ctm Matrix, c Color, alpha float64) error {
	if d.empty() || path.IsEmpty() {
		return nil
	}
	m := ctm.Multiply(d.transform)
	z := d.rasterizer()
	open := false
	for _, el := range path.Elements {
		switch el.Op {
		case PathMoveTo:
			if open {
				z.ClosePath()
			}
			z.MoveTo(d.point(m, el.Points[0].X, el.Points[0].Y))
			open = true
		case PathLineTo:
			z.LineTo(d.point(m, el.Points[0].X, el.Points[0].Y))
		case PathCurveTo:
			bx, by := d.point(m, el.Points[0].X, el.Points[0].Y)
			cx, cy := d.point(m, el.Points[1].X, el.Points[1].Y)
			dx, dy := d.point(m, el.Points[2].X, el.Points[2].Y)
			z.CubeTo(bx, by, cx, cy, dx, dy)
		case PathClose:
			if open {
				z.ClosePath()
				open = false
			}
		}
	}
	if open {
		z.ClosePath()
	}
	d.paint(z, c.NRGBA(alpha))
	return nil
}

// StrokePath strokes every segment as a quadrilateral and covers the
// joints with squares. Dashes are not applied.
func (d *drawDevice) StrokePath(path *Path, stroke StrokeState, ctm Matrix, c Color, alpha float64) error {
	if d.empty() || path.IsEmpty() {
		return nil
	}
	m := ctm.Multiply(d.transform)
	hw := max(stroke.LineWidth*m.Expansion(), 1) / 2

	z := d.rasterizer()
	var cur, start Point
	for _, el := range path.Elements {
		switch el.Op {
		case PathMoveTo:
			cur = m.TransformPoint(el.Points[0])
			start = cur
			d.strokeJoin(z, cur, hw)
		case PathLineTo:
			next := m.TransformPoint(el.Points[0])
			d.strokeSegment(z, cur, next, hw)
			cur = next
		case PathCurveTo:
			p0 := cur
			p1 := m.TransformPoint(el.Points[0])
			p2 := m.TransformPoint(el.Points[1])
			p3 := m.TransformPoint(el.Points[2])
			for i := 1; i <= curveSteps; i++ {
				next := cubicPoint(p0, p1, p2, p3, float64(i)/curveSteps)
				d.strokeSegment(z, cur, next, hw)
				cur = next
			}
		case PathClose:
			d.strokeSegment(z, cur, start, hw)
			cur = start
		}
	}
	d.paint(z, c.NRGBA(alpha))
	return nil
}

func cubicPoint(p0, p1, p2, p3 Point, t float64) Point {
	u := 1 - t
	a, b, c, e := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + e*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + e*p3.Y,
	}
}

// strokeSegment adds the quadrilateral around p0-p1 in device space.
// All quads and join squares share one orientation so that overlaps
// accumulate instead of cancelling.
func (d *drawDevice) strokeSegment(z *vector.Rasterizer, p0, p1 Point, hw float64) {
	dx, dy := p1.X-p0.X, p1.Y-p0.Y
	l := math.Hypot(dx, dy)
	if l < 1e-9 {
		return
	}
	nx, ny := -dy/l*hw, dx/l*hw
	ox, oy := float64(d.origin.X), float64(d.origin.Y)
	z.MoveTo(float32(p0.X+nx-ox), float32(p0.Y+ny-oy))
	z.LineTo(float32(p1.X+nx-ox), float32(p1.Y+ny-oy))
	z.LineTo(float32(p1.X-nx-ox), float32(p1.Y-ny-oy))
	z.LineTo(float32(p0.X-nx-ox), float32(p0.Y-ny-oy))
	z.ClosePath()
	d.strokeJoin(z, p1, hw)
}

func (d *drawDevice) strokeJoin(z *vector.Rasterizer, p Point, hw float64) {
	x, y := p.X-float64(d.origin.X), p.Y-float64(d.origin.Y)
	z.MoveTo(float32(x-hw), float32(y+hw))
	z.LineTo(float32(x+hw), float32(y+hw))
	z.LineTo(float32(x+hw), float32(y-hw))
	z.LineTo(float32(x-hw), float32(y-hw))
	z.ClosePath()
}

// FillText draws glyphs with the built-in Go Regular outlines, stretched
// horizontally to the advance of the document's font.
func (d *drawDevice) FillText(text *Text, ctm Matrix, c Color, alpha float64) error {
	if d.empty() || text == nil || text.Invisible() {
		return nil
	}
	f, err := fallbackFont()
	if err != nil {
		return err
	}
	upem := float64(f.UnitsPerEm())
	ppem := fixed.I(int(f.UnitsPerEm()))
	m := ctm.Multiply(d.transform)

	z := d.rasterizer()
	drawn := false
	for _, g := range text.Glyphs {
		r := firstRune(g.Unicode)
		if r <= ' ' {
			continue
		}
		idx, err := f.GlyphIndex(&d.buf, r)
		if err != nil || idx == 0 {
			continue
		}
		segs, err := f.LoadGlyph(&d.buf, idx, ppem, nil)
		if err != nil {
			continue
		}
		sx := 1.0
		if adv, err := f.GlyphAdvance(&d.buf, idx, ppem, font.HintingNone); err == nil && adv > 0 && g.Advance > 0 {
			sx = min(max(g.Advance/(float64(adv)/64/upem), 0.3), 3)
		}
		gm := Scale(sx/upem/64, -1/upem/64).Multiply(g.Trm).Multiply(m)
		open := false
		for _, s := range segs {
			switch s.Op {
			case sfnt.SegmentOpMoveTo:
				if open {
					z.ClosePath()
				}
				z.MoveTo(d.point(gm, float64(s.Args[0].X), float64(s.Args[0].Y)))
				open = true
			case sfnt.SegmentOpLineTo:
				z.LineTo(d.point(gm, float64(s.Args[0].X), float64(s.Args[0].Y)))
			case sfnt.SegmentOpQuadTo:
				bx, by := d.point(gm, float64(s.Args[0].X), float64(s.Args[0].Y))
				cx, cy := d.point(gm, float64(s.Args[1].X), float64(s.Args[1].Y))
				z.QuadTo(bx, by, cx, cy)
			case sfnt.SegmentOpCubeTo:
				bx, by := d.point(gm, float64(s.Args[0].X), float64(s.Args[0].Y))
				cx, cy := d.point(gm, float64(s.Args[1].X), float64(s.Args[1].Y))
				ex, ey := d.point(gm, float64(s.Args[2].X), float64(s.Args[2].Y))
				z.CubeTo(bx, by, cx, cy, ex, ey)
			}
		}
		if open {
			z.ClosePath()
		}
		drawn = true
	}
	if drawn {
		d.paint(z, c.NRGBA(alpha))
	}
	return nil
}

// FillImage maps the image onto the unit square transformed by ctm.
func (d *drawDevice) FillImage(img image.Image, ctm Matrix, alpha float64) error {
	if d.empty() || img == nil {
		return nil
	}
	sr := img.Bounds()
	if sr.Empty() {
		return nil
	}
	s := Translate(-float64(sr.Min.X), -float64(sr.Min.Y)).
		Multiply(Scale(1/float64(sr.Dx()), 1/float64(sr.Dy()))).
		Multiply(ctm).
		Multiply(d.transform)
	if math.Abs(s.A*s.D-s.B*s.C) < 1e-12 {
		return nil
	}

	var opts *xdraw.Options
	if alpha < 1 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: unitToByte(alpha)})}
	}
	xdraw.BiLinear.Transform(d.dst, f64.Aff3{s.A, s.C, s.E, s.B, s.D, s.F}, img, sr, xdraw.Over, opts)
	return nil
}

func (d *drawDevice) Close() error {
	d.closed = true
	return nil
}

func (d *drawDevice) Drop() {
	d.closed = true
	d.dst = nil
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
