//go:build fitz

package engine

import (
	"strings"
	"testing"

	"github.com/gen2brain/go-fitz"
)

func openFitzDocument(t *testing.T, path string) Document {
	t.Helper()
	ctx := NewContext(0)
	ctx.RegisterDocumentHandler(FitzHandler())
	ctx.RegisterDocumentHandlers()
	doc, err := ctx.OpenDocument(path)
	if err != nil {
		ctx.Drop()
		t.Fatalf("Failed to open document: %v", err)
	}
	t.Cleanup(func() {
		doc.Drop()
		ctx.Drop()
	})
	if _, ok := doc.(*fitzDocument); !ok {
		t.Fatalf("Expected the fitz handler to open %s, got %T", path, doc)
	}
	return doc
}

func TestFitzDocument(t *testing.T) {
	path := newTestPDF(letterPage(helloContent), testPage{width: 300, height: 400}).write(t)
	doc := openFitzDocument(t, path)

	n, err := doc.CountPages()
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 pages, got %d (%v)", n, err)
	}
	if doc.NeedsPassword() {
		t.Error("Plain document should not need a password")
	}

	page, err := doc.LoadPage(1)
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	defer page.Drop()
	if b := page.Bound(); b.X1 != 300 || b.Y1 != 400 {
		t.Errorf("Expected 300x400 bound, got %+v", b)
	}

	if _, err := doc.LoadPage(2); err == nil {
		t.Error("Expected an error for page 2")
	}
}

func TestFitzText(t *testing.T) {
	doc := openFitzDocument(t, newTestPDF(letterPage(helloContent)).write(t))

	page, err := doc.LoadPage(0)
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	defer page.Drop()

	tp, err := NewTextPageFromPage(page)
	if err != nil {
		t.Fatalf("Failed to extract text: %v", err)
	}
	if tp.LineCount() == 0 {
		t.Fatal("Expected at least one line")
	}
	if got := tp.Blocks[0].Lines[0].Text(); !strings.Contains(got, "Hello") {
		t.Errorf("Expected line to contain 'Hello', got %q", got)
	}
}

func TestFitzRender(t *testing.T) {
	doc := openFitzDocument(t, newTestPDF(letterPage("0 0 1 rg 0 0 306 792 re f")).write(t))

	page, err := doc.LoadPage(0)
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	defer page.Drop()

	ctm := Scale(0.1, 0.1)
	pix, err := NewPixmapWithBBox(RoundRect(ctm.TransformRect(page.Bound())))
	if err != nil {
		t.Fatalf("Failed to create pixmap: %v", err)
	}
	defer pix.Drop()
	pix.Clear(0xff)

	dev := NewDrawDevice(Identity, pix)
	defer dev.Drop()
	if err := page.Run(dev, ctm); err != nil {
		t.Fatalf("Failed to run page: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Failed to close device: %v", err)
	}

	img := pix.Image()
	if c := img.RGBAAt(10, 40); c.B < 0xc0 || c.R > 0x40 {
		t.Errorf("Expected blue on the left half, got %+v", c)
	}
	if c := img.RGBAAt(50, 40); c.R < 0xc0 || c.G < 0xc0 || c.B < 0xc0 {
		t.Errorf("Expected white on the right half, got %+v", c)
	}
}

func TestOutlineFromToC(t *testing.T) {
	toc := []fitz.Outline{
		{Level: 1, Title: "Chapter 1", Page: 0},
		{Level: 2, Title: "Section 1.1", Page: 1},
		{Level: 3, Title: "Detail", Page: 1},
		{Level: 2, Title: "Section 1.2", Page: 2},
		{Level: 1, Title: "External", Page: -1, URI: "https://example.com/"},
	}

	root := outlineFromToC(toc)
	tests := []struct {
		name  string
		item  *Outline
		title string
		uri   string
	}{
		{"first", root, "Chapter 1", "#page=1"},
		{"child", root.Down, "Section 1.1", "#page=2"},
		{"grandchild", root.Down.Down, "Detail", "#page=2"},
		{"second child", root.Down.Next, "Section 1.2", "#page=3"},
		{"sibling", root.Next, "External", "https://example.com/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.item == nil {
				t.Fatal("Missing entry")
			}
			if tt.item.Title != tt.title || tt.item.URI != tt.uri {
				t.Errorf("Expected %q %q, got %q %q", tt.title, tt.uri, tt.item.Title, tt.item.URI)
			}
		})
	}
	if root.Down.Next.Next != nil || root.Next.Next != nil || root.Next.Down != nil {
		t.Error("Unexpected extra entries")
	}
	if outlineFromToC(nil) != nil {
		t.Error("Expected nil outline for an empty table of contents")
	}
}
