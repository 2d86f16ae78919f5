// Package enginetest provides an in-memory document handler for testing
// code built on the engine package.
package enginetest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pyhub-apps/docview-golang/pkg/engine"
)

// magic starts every file written by Handler.Add
const magic = "%FAKEDOC"

// Text layout of fake pages, in page space units
const (
	FontSize    = 10.0
	CharAdvance = 0.6 // em
	LineHeight  = 20.0
	MarginLeft  = 10.0
	MarginTop   = 20.0
)

// Page describes a fake page.
type Page struct {
	Width, Height float64

	// Lines are painted top to bottom, one text line each
	Lines []string

	// Background, when set, is painted over the whole page first
	Background *engine.Color

	// RunErr is returned by Run after painting
	RunErr error
}

// Document is a fake document. Its exported fields configure it; the
// counters report how the code under test used it.
type Document struct {
	Pages    []Page
	Outline  *engine.Outline
	Links    map[string]int // targets of non #page=N links
	Password string

	mu          sync.Mutex
	locked      bool
	livePages   int
	pagesLoaded int
	dropped     bool
}

// LivePages returns the number of loaded pages that were not dropped.
func (d *Document) LivePages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.livePages
}

// PagesLoaded returns how many times a page was loaded.
func (d *Document) PagesLoaded() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pagesLoaded
}

// Dropped reports whether the document was dropped.
func (d *Document) Dropped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Document) CountPages() (int, error) {
	if d.NeedsPassword() {
		return 0, engine.ErrNeedsPassword
	}
	return len(d.Pages), nil
}

func (d *Document) NeedsPassword() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

func (d *Document) AuthenticatePassword(password string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.locked {
		return true
	}
	if password != d.Password {
		return false
	}
	d.locked = false
	return true
}

func (d *Document) LoadPage(number int) (engine.Page, error) {
	if d.NeedsPassword() {
		return nil, engine.ErrNeedsPassword
	}
	if number < 0 || number >= len(d.Pages) {
		return nil, fmt.Errorf("page %d of %d: %w", number, len(d.Pages), engine.ErrPageRange)
	}
	d.mu.Lock()
	d.livePages++
	d.pagesLoaded++
	d.mu.Unlock()
	return &page{doc: d, def: d.Pages[number]}, nil
}

func (d *Document) LoadOutline() (*engine.Outline, error) {
	return d.Outline, nil
}

func (d *Document) ResolveLink(uri string) (int, error) {
	if p, ok := d.Links[uri]; ok {
		return p, nil
	}
	if s, ok := strings.CutPrefix(uri, "#page="); ok {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(d.Pages) {
			return n - 1, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", uri, engine.ErrUnresolvedLink)
}

func (d *Document) Drop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropped = true
}

type page struct {
	doc     *Document
	def     Page
	dropped bool
}

func (p *page) Bound() engine.Rect {
	return engine.Rect{X1: p.def.Width, Y1: p.def.Height}
}

func (p *page) Run(dev engine.Device, ctm engine.Matrix) error {
	if p.def.Background != nil {
		var path engine.Path
		path.Rect(0, 0, p.def.Width, p.def.Height)
		if err := dev.FillPath(&path, false, ctm, *p.def.Background, 1); err != nil {
			return err
		}
	}

	for i, line := range p.def.Lines {
		text := &engine.Text{FontName: "Fake"}
		x := MarginLeft
		y := MarginTop + float64(i)*LineHeight
		for _, r := range line {
			text.Glyphs = append(text.Glyphs, engine.Glyph{
				Unicode: string(r),
				Code:    int(r),
				Trm:     engine.Matrix{A: FontSize, D: -FontSize, E: x, F: y},
				Advance: CharAdvance,
			})
			x += CharAdvance * FontSize
		}
		if err := dev.FillText(text, ctm, engine.Black, 1); err != nil {
			return err
		}
	}
	return p.def.RunErr
}

func (p *page) Drop() {
	if p.dropped {
		return
	}
	p.dropped = true
	p.doc.mu.Lock()
	p.doc.livePages--
	p.doc.mu.Unlock()
}

// Handler opens the documents registered with Add. Files are matched by
// path; their content only carries a marker for Recognize.
type Handler struct {
	mu   sync.Mutex
	docs map[string]*Document
}

// NewHandler returns an empty handler.
func NewHandler() *Handler {
	return &Handler{docs: make(map[string]*Document)}
}

// Add writes a marker file named name into dir and registers doc under
// its path, which is returned.
func (h *Handler) Add(dir, name string, doc *Document) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(magic+"\n"+name+"\n"), 0o644); err != nil {
		return "", err
	}
	h.mu.Lock()
	h.docs[path] = doc
	h.mu.Unlock()
	return path, nil
}

func (h *Handler) Name() string { return "fake" }

func (h *Handler) Extensions() []string { return []string{"fake"} }

func (h *Handler) Recognize(header []byte) bool {
	return bytes.HasPrefix(header, []byte(magic))
}

func (h *Handler) Open(_ *engine.Context, path string) (engine.Document, error) {
	h.mu.Lock()
	doc, ok := h.docs[path]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: not registered", path)
	}

	doc.mu.Lock()
	doc.locked = doc.Password != ""
	doc.dropped = false
	doc.mu.Unlock()
	return doc, nil
}
