package docview

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyhub-apps/docview-golang/pkg/engine/enginetest"
)

func TestOpenAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.pdf")
	err := enginetest.WritePDF(path,
		enginetest.TextContent("Dummy PDF file", "say hello world"),
		enginetest.TextContent("nothing here"))
	if err != nil {
		t.Fatalf("Failed to write PDF: %v", err)
	}

	doc, err := Open(path, WithWorkers(2))
	if err != nil {
		t.Fatalf("Failed to open PDF: %v", err)
	}
	defer doc.Close()

	if doc.PageCount() != 2 {
		t.Errorf("Expected 2 pages, got %d", doc.PageCount())
	}

	text := doc.PageText(0, '\n')
	if !strings.Contains(text, "Dummy PDF file") {
		t.Errorf("Expected text to contain 'Dummy PDF file', got: %s", text)
	}

	hits := doc.Search("hello", 20)
	if len(hits) != 1 || hits[0].Page != 0 {
		t.Fatalf("Expected one hit on page 0, got %+v", hits)
	}

	img, err := doc.RenderImage(0, 0.5, 90)
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	if img.Bounds().Dx() != 396 || img.Bounds().Dy() != 306 {
		t.Errorf("Expected 396x306, got %v", img.Bounds())
	}
}

func TestOpenWithPassword(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.pdf")
	locked := filepath.Join(dir, "locked.pdf")
	if err := enginetest.WritePDF(plain, enginetest.TextContent("secret")); err != nil {
		t.Fatal(err)
	}
	if err := enginetest.EncryptPDF(plain, locked, "user", "owner"); err != nil {
		t.Skipf("pdfcpu cannot encrypt the test document: %v", err)
	}

	if _, err := OpenWithPassword(locked, "nope"); !errors.Is(err, ErrCannotOpen) {
		t.Errorf("Expected ErrCannotOpen, got %v", err)
	}
	doc, err := OpenWithPassword(locked, "user")
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	doc.Close()
}
