// Package document is the viewing core: it opens documents through the
// engine, renders pages to pixel sinks, extracts and searches page text
// and converts outlines into trees.
//
// A Handle serializes every engine call behind one mutex, so a Handle
// may be shared between goroutines. Distinct handles are independent.
package document

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pyhub-apps/docview-golang/pkg/engine"
)

var (
	// ErrCannotOpen is wrapped by every error returned from Open
	ErrCannotOpen = errors.New("cannot open document")

	// ErrRender is wrapped by errors from the engine while rendering
	ErrRender = errors.New("render failed")
)

// Handle is an open document. It exclusively owns the engine context and
// document, which are released together by Close.
type Handle struct {
	mu     sync.Mutex
	ctx    *engine.Context
	doc    engine.Document
	path   string
	pages  int
	runner Runner
	log    *slog.Logger
	closed bool
}

// Open opens the document at path. It fails with an error wrapping
// ErrCannotOpen when the file cannot be read or recognized, when the
// document is encrypted and no password or a wrong one was given, or when
// the document has no pages.
func Open(path string, opts ...Option) (*Handle, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.runner == nil {
		o.runner = NewParallelRunner(0)
	}
	log := o.logger.With("component", "document", "path", path)

	ctx := engine.NewContext(o.storeSize)
	if o.engineWarnings {
		ctx.SetWarningCallback(func(msg string) {
			log.Debug("engine warning", "message", msg)
		})
	} else {
		ctx.SetWarningCallback(nil)
	}
	for _, h := range o.preferred {
		ctx.RegisterDocumentHandler(h)
	}
	ctx.RegisterDocumentHandlers()
	for _, h := range o.handlers {
		ctx.RegisterDocumentHandler(h)
	}

	doc, err := ctx.OpenDocument(path)
	if err != nil {
		ctx.Drop()
		return nil, fmt.Errorf("%w %q: %w", ErrCannotOpen, path, err)
	}

	pages, err := checkOpened(doc, path, o.password)
	if err != nil {
		log.Debug("open failed", "error", err)
		doc.Drop()
		ctx.Drop()
		return nil, err
	}

	log.Debug("document opened", "pages", pages)
	return &Handle{
		ctx:    ctx,
		doc:    doc,
		path:   path,
		pages:  pages,
		runner: o.runner,
		log:    log,
	}, nil
}

// checkOpened unlocks doc if needed and returns its page count
func checkOpened(doc engine.Document, path string, password *string) (int, error) {
	if doc.NeedsPassword() {
		if password == nil {
			return 0, fmt.Errorf("document %q is password protected: %w", path, ErrCannotOpen)
		}
		if !doc.AuthenticatePassword(*password) {
			return 0, fmt.Errorf("incorrect password for document %q: %w", path, ErrCannotOpen)
		}
	}

	pages, err := doc.CountPages()
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrCannotOpen, path, err)
	}
	if pages <= 0 {
		return 0, fmt.Errorf("document %q has no pages: %w", path, ErrCannotOpen)
	}
	return pages, nil
}

// PageCount returns the number of pages, always at least one.
func (h *Handle) PageCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.check()
	return h.pages
}

// Path returns the path the document was opened from
func (h *Handle) Path() string {
	return h.path
}

// Close releases the document and then the engine context. Closing a
// closed handle does nothing.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.doc.Drop()
	h.ctx.Drop()
	h.doc = nil
	h.ctx = nil
	h.closed = true
	h.log.Debug("document closed")
	return nil
}

func (h *Handle) check() {
	if h.closed {
		panic("document: use of closed handle")
	}
}

func (h *Handle) checkPage(page int) {
	if page < 0 || page >= h.pages {
		panic(fmt.Sprintf("document: page %d out of range [0, %d)", page, h.pages))
	}
}
