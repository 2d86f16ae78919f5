package engine

import (
	"bytes"
	"fmt"
	"sync"

	dpdf "github.com/dslipak/pdf"
	lpdf "github.com/ledongthuc/pdf"
)

// positionedText is a run of text reported by a text extraction backend,
// in PDF user space.
type positionedText struct {
	X, Y, W, Size float64
	S             string
}

// textBackend extracts the positioned text of a page (1-based).
type textBackend interface {
	name() string
	pageText(n int) ([]positionedText, error)
}

// textLayers tries the extraction backends in order: ledongthuc/pdf,
// which handles most fonts, then dslipak/pdf, then the content stream
// interpreter.
type textLayers struct {
	raw      []byte
	password string

	once     sync.Once
	backends []textBackend
}

func newTextLayers(raw []byte, password string) *textLayers {
	return &textLayers{raw: raw, password: password}
}

// onePassword supplies the password once; the readers keep asking until
// they get an empty answer.
func onePassword(password string) func() string {
	used := false
	return func() string {
		if used {
			return ""
		}
		used = true
		return password
	}
}

func (tl *textLayers) open(warnf func(string, ...any)) {
	size := int64(len(tl.raw))

	if r, err := openLedongthuc(tl.raw, size, tl.password); err == nil {
		tl.backends = append(tl.backends, ledongthucBackend{r})
	} else {
		warnf("pdf: ledongthuc text layer unavailable: %v", err)
	}
	if r, err := openDslipak(tl.raw, size, tl.password); err == nil {
		tl.backends = append(tl.backends, dslipakBackend{r})
	} else {
		warnf("pdf: dslipak text layer unavailable: %v", err)
	}
}

func openLedongthuc(raw []byte, size int64, password string) (r *lpdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return lpdf.NewReaderEncrypted(bytes.NewReader(raw), size, onePassword(password))
}

func openDslipak(raw []byte, size int64, password string) (r *dpdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return dpdf.NewReaderEncrypted(bytes.NewReader(raw), size, onePassword(password))
}

type ledongthucBackend struct{ r *lpdf.Reader }

func (ledongthucBackend) name() string { return "ledongthuc" }

func (b ledongthucBackend) pageText(n int) (out []positionedText, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if n < 1 || n > b.r.NumPage() {
		return nil, ErrPageRange
	}
	page := b.r.Page(n)
	if page.V.IsNull() {
		return nil, ErrPageRange
	}
	for _, t := range page.Content().Text {
		out = append(out, positionedText{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
	}
	return out, nil
}

type dslipakBackend struct{ r *dpdf.Reader }

func (dslipakBackend) name() string { return "dslipak" }

func (b dslipakBackend) pageText(n int) (out []positionedText, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if n < 1 || n > b.r.NumPage() {
		return nil, ErrPageRange
	}
	page := b.r.Page(n)
	if page.V.IsNull() {
		return nil, ErrPageRange
	}
	for _, t := range page.Content().Text {
		out = append(out, positionedText{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
	}
	return out, nil
}

// textPage returns the structured text of p from the first backend that
// finds any text on it. Pages without text in either backend fall back
// to the interpreter.
func (tl *textLayers) textPage(p *pdfPage) (*TextPage, error) {
	tl.once.Do(func() { tl.open(p.doc.ctx.Warnf) })

	for _, b := range tl.backends {
		runs, err := b.pageText(p.number + 1)
		if err != nil {
			p.doc.ctx.Warnf("pdf: %s text layer: %v", b.name(), err)
			continue
		}
		chars := runsToChars(runs, p.base)
		if len(chars) == 0 {
			continue
		}
		return NewTextPage(p.bound, chars), nil
	}

	dev := NewTextDevice(p.bound)
	defer dev.Drop()
	if err := p.Run(dev, Identity); err != nil {
		return nil, err
	}
	if err := dev.Close(); err != nil {
		return nil, err
	}
	return dev.TextPage(), nil
}

// runsToChars splits text runs into characters in page space, dividing
// the run width evenly among its runes.
func runsToChars(runs []positionedText, base Matrix) []TextChar {
	var chars []TextChar
	for _, t := range runs {
		rs := []rune(t.S)
		if len(rs) == 0 {
			continue
		}
		size := t.Size
		if size <= 0 {
			size = 1
		}
		w := t.W / float64(len(rs))
		for i, r := range rs {
			if r == '\n' || r == '\r' {
				continue
			}
			x := t.X + w*float64(i)
			box := Rect{X0: x, Y0: t.Y - 0.2*size, X1: x + w, Y1: t.Y + 0.8*size}
			chars = append(chars, TextChar{
				Text:   string(r),
				Origin: base.TransformPoint(Point{X: x, Y: t.Y}),
				Box:    base.TransformRect(box),
				Size:   size,
			})
		}
	}
	return chars
}
