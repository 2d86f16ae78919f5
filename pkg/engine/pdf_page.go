package engine

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// US Letter, used when a page has no usable MediaBox
var defaultMediaBox = Rect{X1: 612, Y1: 792}

type pdfPage struct {
	doc       *pdfDocument
	number    int
	dict      types.Dict
	resources types.Dict
	box       Rect   // visible area in PDF user space
	rotate    int    // clockwise, one of 0, 90, 180, 270
	base      Matrix // PDF user space -> page space
	bound     Rect
	dropped   bool
}

func (d *pdfDocument) loadPage(number int) (*pdfPage, error) {
	dict, _, attrs, err := d.pdf.PageDict(number+1, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get page dict: %w", err)
	}
	if dict == nil {
		return nil, fmt.Errorf("page %d: %w", number, ErrPageRange)
	}

	p := &pdfPage{doc: d, number: number, dict: dict, box: defaultMediaBox}
	if attrs != nil {
		switch {
		case attrs.CropBox != nil:
			p.box = rectFromPDF(attrs.CropBox)
		case attrs.MediaBox != nil:
			p.box = rectFromPDF(attrs.MediaBox)
		}
		if attrs.MediaBox != nil && attrs.CropBox != nil {
			p.box = p.box.Intersect(rectFromPDF(attrs.MediaBox))
		}
		p.rotate = normalizeRotation(attrs.Rotate)
		p.resources = attrs.Resources
	}
	if p.resources == nil {
		p.resources = d.objs.dict(dict["Resources"])
	}
	if p.box.IsEmpty() {
		p.box = defaultMediaBox
	}

	p.base, p.bound = pageTransform(p.box, p.rotate)
	return p, nil
}

func rectFromPDF(r *types.Rectangle) Rect {
	return Rect{
		X0: min(r.LL.X, r.UR.X),
		Y0: min(r.LL.Y, r.UR.Y),
		X1: max(r.LL.X, r.UR.X),
		Y1: max(r.LL.Y, r.UR.Y),
	}
}

func normalizeRotation(r int) int {
	r %= 360
	if r < 0 {
		r += 360
	}
	return r / 90 * 90
}

// pageTransform returns the matrix taking PDF user space, where y grows
// upwards, to page space, where y grows downwards and the page is shown
// upright after its /Rotate, along with the resulting page bounds.
func pageTransform(box Rect, rotate int) (Matrix, Rect) {
	w, h := box.Width(), box.Height()
	flip := Matrix{A: 1, D: -1, E: -box.X0, F: box.Y1}
	switch rotate {
	case 90:
		return flip.Multiply(Matrix{B: 1, C: -1, E: h}), Rect{X1: h, Y1: w}
	case 180:
		return flip.Multiply(Matrix{A: -1, D: -1, E: w, F: h}), Rect{X1: w, Y1: h}
	case 270:
		return flip.Multiply(Matrix{B: -1, C: 1, F: w}), Rect{X1: h, Y1: w}
	}
	return flip, Rect{X1: w, Y1: h}
}

func (p *pdfPage) check() {
	if p.dropped {
		panic("engine: use of dropped page")
	}
}

func (p *pdfPage) Bound() Rect {
	p.check()
	return p.bound
}

// Run interprets the page's content streams. Malformed content ends the
// run early with a warning; device errors are returned.
func (p *pdfPage) Run(dev Device, ctm Matrix) (err error) {
	p.check()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: page %d: %v", p.number, r)
		}
	}()

	content := p.doc.objs.streamContents(p.dict["Contents"])
	in := newInterpreter(p.doc, dev, p.base.Multiply(ctm))
	return in.run(content, p.resources)
}

func (p *pdfPage) TextPage() (*TextPage, error) {
	p.check()
	return p.doc.text.textPage(p)
}

func (p *pdfPage) Drop() {
	p.dropped = true
	p.dict = nil
	p.resources = nil
}
