//go:build fitz

package engine

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// fitzExtensions are the formats MuPDF opens that no built-in handler does,
// plus PDF.
var fitzExtensions = []string{"pdf", "epub", "xps", "oxps", "fb2", "mobi"}

type fitzHandler struct{}

// FitzHandler returns a handler backed by MuPDF through go-fitz. It needs
// cgo or a shared MuPDF library and is only built with the fitz tag.
// MuPDF decides passwords when the file is opened, so encrypted documents
// stay locked.
func FitzHandler() DocumentHandler { return fitzHandler{} }

func (fitzHandler) Name() string { return "fitz" }

func (fitzHandler) Extensions() []string { return fitzExtensions }

func (fitzHandler) Recognize(header []byte) bool {
	if bytes.Contains(header, []byte("%PDF-")) {
		return true
	}
	// EPUB: a zip whose first entry is the uncompressed mimetype file
	return bytes.HasPrefix(header, []byte("PK\x03\x04")) &&
		bytes.Contains(header, []byte("mimetypeapplication/epub+zip"))
}

func (fitzHandler) Open(_ *Context, path string) (Document, error) {
	doc, err := fitz.New(path)
	if errors.Is(err, fitz.ErrNeedsPassword) {
		return &fitzDocument{locked: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc     *fitz.Document
	locked  bool
	dropped bool
}

func (d *fitzDocument) check() {
	if d.dropped {
		panic("engine: use of dropped document")
	}
}

func (d *fitzDocument) NeedsPassword() bool {
	d.check()
	return d.locked
}

func (d *fitzDocument) AuthenticatePassword(string) bool {
	d.check()
	return !d.locked
}

func (d *fitzDocument) CountPages() (int, error) {
	d.check()
	if d.locked {
		return 0, ErrNeedsPassword
	}
	return d.doc.NumPage(), nil
}

func (d *fitzDocument) LoadPage(number int) (Page, error) {
	d.check()
	if d.locked {
		return nil, ErrNeedsPassword
	}
	if number < 0 || number >= d.doc.NumPage() {
		return nil, fmt.Errorf("page %d of %d: %w", number, d.doc.NumPage(), ErrPageRange)
	}
	b, err := d.doc.Bound(number)
	if err != nil {
		return nil, fmt.Errorf("failed to get page bounds: %w", err)
	}
	return &fitzPage{
		doc:    d.doc,
		number: number,
		bound:  Rect{X1: float64(b.Dx()), Y1: float64(b.Dy())},
	}, nil
}

func (d *fitzDocument) LoadOutline() (*Outline, error) {
	d.check()
	if d.locked {
		return nil, ErrNeedsPassword
	}
	toc, err := d.doc.ToC()
	if err != nil {
		return nil, fmt.Errorf("failed to read outline: %w", err)
	}
	return outlineFromToC(toc), nil
}

// outlineFromToC links MuPDF's flat, level numbered table of contents
// into an outline tree.
func outlineFromToC(toc []fitz.Outline) *Outline {
	var first *Outline
	// last[i] is the latest entry at depth i
	var last []*Outline
	for _, e := range toc {
		item := &Outline{Title: e.Title, URI: e.URI}
		if e.Page >= 0 {
			item.URI = "#page=" + strconv.Itoa(e.Page+1)
		}

		depth := min(max(e.Level-1, 0), len(last))
		switch {
		case depth == 0 && first == nil:
			first = item
		case depth == 0:
			last[0].Next = item
		case last[depth-1].Down == nil:
			last[depth-1].Down = item
		default:
			last[depth].Next = item
		}
		last = append(last[:depth], item)
	}
	return first
}

func (d *fitzDocument) ResolveLink(uri string) (int, error) {
	d.check()
	if d.locked {
		return 0, ErrNeedsPassword
	}
	return resolvePageURI(uri, d.doc.NumPage())
}

func (d *fitzDocument) Drop() {
	if d.dropped {
		return
	}
	if d.doc != nil {
		d.doc.Close()
	}
	d.doc = nil
	d.dropped = true
}

// fitzPage draws the page as one image rendered by MuPDF at the
// resolution the device transform asks for.
type fitzPage struct {
	doc     *fitz.Document
	number  int
	bound   Rect
	dropped bool
}

func (p *fitzPage) check() {
	if p.dropped {
		panic("engine: use of dropped page")
	}
}

func (p *fitzPage) Bound() Rect {
	p.check()
	return p.bound
}

func (p *fitzPage) Run(dev Device, ctm Matrix) error {
	p.check()
	dpi := max(72*ctm.Expansion(), 1)
	img, err := p.doc.ImageDPI(p.number, dpi)
	if err != nil {
		return fmt.Errorf("fitz: page %d: %w", p.number, err)
	}
	return dev.FillImage(img, Scale(p.bound.X1, p.bound.Y1).Multiply(ctm), 1)
}

// Text layout of the synthesized text page, in page space units
const (
	fitzTextSize    = 10.0
	fitzTextAdvance = 6.0
	fitzLineHeight  = 12.0
)

// TextPage lays MuPDF's plain text out line by line. MuPDF reports no
// glyph positions through go-fitz, so the positions are synthetic and
// only the reading order is real.
func (p *fitzPage) TextPage() (*TextPage, error) {
	p.check()
	text, err := p.doc.Text(p.number)
	if err != nil {
		return nil, fmt.Errorf("fitz: page %d: %w", p.number, err)
	}

	var chars []TextChar
	y := 0.0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}
		y += fitzLineHeight
		for i, r := range []rune(line) {
			x := float64(i) * fitzTextAdvance
			chars = append(chars, TextChar{
				Text:   string(r),
				Origin: Point{X: x, Y: y},
				Box:    Rect{X0: x, Y0: y - 0.8*fitzTextSize, X1: x + fitzTextAdvance, Y1: y + 0.2*fitzTextSize},
				Size:   fitzTextSize,
			})
		}
	}
	return NewTextPage(p.bound, chars), nil
}

func (p *fitzPage) Drop() {
	p.dropped = true
	p.doc = nil
}
