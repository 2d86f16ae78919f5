package document

import (
	"testing"

	"github.com/pyhub-apps/docview-golang/pkg/engine"
	"github.com/pyhub-apps/docview-golang/pkg/engine/enginetest"
)

func textPage(lines ...string) enginetest.Page {
	return enginetest.Page{Width: 612, Height: 792, Lines: lines}
}

// openFake opens doc through the fake handler
func openFake(t *testing.T, doc *enginetest.Document, opts ...Option) *Handle {
	t.Helper()
	h := enginetest.NewHandler()
	path, err := h.Add(t.TempDir(), "doc.fake", doc)
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	handle, err := Open(path, append([]Option{WithHandler(h)}, opts...)...)
	if err != nil {
		t.Fatalf("Failed to open document: %v", err)
	}
	t.Cleanup(func() { handle.Close() })
	return handle
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected a panic", name)
		}
	}()
	fn()
}

func colorPtr(c engine.Color) *engine.Color { return &c }
