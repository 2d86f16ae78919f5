// Package docview renders, extracts text from, searches and navigates
// paginated documents: PDF, images and CBZ archives.
package docview

import (
	"github.com/pyhub-apps/docview-golang/pkg/document"
)

// Re-export types from the document package for the public API
type (
	Handle          = document.Handle
	Option          = document.Option
	PageSize        = document.PageSize
	OutlineItem     = document.OutlineItem
	SearchHit       = document.SearchHit
	PixelWriter     = document.PixelWriter
	PixelWriterFunc = document.PixelWriterFunc
	ImageWriter     = document.ImageWriter
	Runner          = document.Runner
)

// Re-export option functions
var (
	WithPassword         = document.WithPassword
	WithWorkers          = document.WithWorkers
	WithRunner           = document.WithRunner
	WithLogger           = document.WithLogger
	WithEngineWarnings   = document.WithEngineWarnings
	WithHandler          = document.WithHandler
	WithPreferredHandler = document.WithPreferredHandler
	WithStoreSize        = document.WithStoreSize
)

// Re-export errors
var (
	ErrCannotOpen = document.ErrCannotOpen
	ErrRender     = document.ErrRender
)

// Open opens a document
func Open(path string, opts ...Option) (*Handle, error) {
	return document.Open(path, opts...)
}

// OpenWithPassword opens a password-protected document
func OpenWithPassword(path, password string, opts ...Option) (*Handle, error) {
	return document.Open(path, append(opts, document.WithPassword(password))...)
}

// NewImageWriter returns a PixelWriter collecting a page into an image
func NewImageWriter(size PageSize) *ImageWriter {
	return document.NewImageWriter(size)
}
