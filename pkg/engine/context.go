package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStoreSize is the number of resources a Context keeps cached
const DefaultStoreSize = 256

// headerSize is how many leading bytes are handed to Recognize
const headerSize = 1024

// StoreKey identifies a cached resource. Owner must be comparable,
// usually the pointer of the document that owns the resource.
type StoreKey struct {
	Owner any
	Kind  string
	ID    int
}

// Context holds the state shared by the documents it opens: the handler
// registry, the warning callback and the resource store. A Context is
// not safe for concurrent use.
type Context struct {
	handlers []DocumentHandler
	store    *lru.Cache[StoreKey, any]
	warn     func(msg string)
	dropped  bool
}

// NewContext creates a context whose resource store holds up to storeSize
// entries. A non-positive size selects DefaultStoreSize.
func NewContext(storeSize int) *Context {
	if storeSize <= 0 {
		storeSize = DefaultStoreSize
	}
	store, err := lru.New[StoreKey, any](storeSize)
	if err != nil {
		panic(fmt.Sprintf("engine: cannot create store: %v", err))
	}
	return &Context{
		store: store,
		warn: func(msg string) {
			slog.Default().Warn(msg, "component", "engine")
		},
	}
}

// RegisterDocumentHandlers registers the built-in handlers: PDF, single
// images and CBZ archives.
func (c *Context) RegisterDocumentHandlers() {
	c.RegisterDocumentHandler(PDFHandler())
	c.RegisterDocumentHandler(ImageHandler())
	c.RegisterDocumentHandler(CBZHandler())
}

// RegisterDocumentHandler adds h to the registry. Handlers registered
// earlier are consulted first.
func (c *Context) RegisterDocumentHandler(h DocumentHandler) {
	c.check()
	c.handlers = append(c.handlers, h)
}

// SetWarningCallback replaces the function receiving engine warnings.
// A nil callback discards them.
func (c *Context) SetWarningCallback(fn func(msg string)) {
	c.check()
	if fn == nil {
		fn = func(string) {}
	}
	c.warn = fn
}

// Warnf reports a recoverable problem through the warning callback
func (c *Context) Warnf(format string, args ...any) {
	if c.dropped {
		return
	}
	c.warn(fmt.Sprintf(format, args...))
}

// StoreGet returns a cached resource
func (c *Context) StoreGet(key StoreKey) (any, bool) {
	c.check()
	return c.store.Get(key)
}

// StorePut caches a resource, evicting the least recently used entry
// when the store is full.
func (c *Context) StorePut(key StoreKey, v any) {
	c.check()
	c.store.Add(key, v)
}

// StoreForget evicts every resource owned by owner
func (c *Context) StoreForget(owner any) {
	if c.dropped {
		return
	}
	for _, k := range c.store.Keys() {
		if k.Owner == owner {
			c.store.Remove(k)
		}
	}
}

// OpenDocument opens the file at path with the first handler that
// recognizes its content. When no handler recognizes the content the
// file extension decides.
func (c *Context) OpenDocument(path string) (Document, error) {
	c.check()

	header, err := readHeader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	for _, h := range c.handlers {
		if h.Recognize(header) {
			return c.openWith(h, path)
		}
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, h := range c.handlers {
		for _, e := range h.Extensions() {
			if e == ext {
				return c.openWith(h, path)
			}
		}
	}

	return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

func (c *Context) openWith(h DocumentHandler, path string) (Document, error) {
	doc, err := h.Open(c, path)
	if err != nil {
		return nil, fmt.Errorf("%s handler: %w", h.Name(), err)
	}
	return doc, nil
}

// Drop releases the context and its store. Documents opened from the
// context must be dropped first.
func (c *Context) Drop() {
	if c.dropped {
		return
	}
	c.store.Purge()
	c.handlers = nil
	c.dropped = true
}

func (c *Context) check() {
	if c.dropped {
		panic("engine: use of dropped context")
	}
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
