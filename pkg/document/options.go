package document

import (
	"log/slog"

	"github.com/pyhub-apps/docview-golang/pkg/engine"
)

// Option configures Open
type Option func(*options)

type options struct {
	password       *string
	runner         Runner
	logger         *slog.Logger
	engineWarnings bool
	handlers       []engine.DocumentHandler
	preferred      []engine.DocumentHandler
	storeSize      int
}

func defaultOptions() *options {
	return &options{
		logger:    slog.New(slog.DiscardHandler),
		storeSize: engine.DefaultStoreSize,
	}
}

// WithPassword supplies the password for encrypted documents
func WithPassword(password string) Option {
	return func(o *options) {
		o.password = &password
	}
}

// WithWorkers sets the number of goroutines copying rendered pixels.
// Zero or less uses one per CPU.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.runner = NewParallelRunner(n)
	}
}

// WithRunner replaces the runner used for the pixel copy phase
func WithRunner(r Runner) Option {
	return func(o *options) {
		o.runner = r
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEngineWarnings routes engine warnings to the logger at debug level
// instead of discarding them.
func WithEngineWarnings(enabled bool) Option {
	return func(o *options) {
		o.engineWarnings = enabled
	}
}

// WithHandler registers an additional document handler, consulted after
// the built-in ones.
func WithHandler(h engine.DocumentHandler) Option {
	return func(o *options) {
		o.handlers = append(o.handlers, h)
	}
}

// WithPreferredHandler registers a document handler consulted before
// the built-in ones.
func WithPreferredHandler(h engine.DocumentHandler) Option {
	return func(o *options) {
		o.preferred = append(o.preferred, h)
	}
}

// WithStoreSize sets how many fonts and images the engine keeps cached
func WithStoreSize(n int) Option {
	return func(o *options) {
		o.storeSize = n
	}
}
