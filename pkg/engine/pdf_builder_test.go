package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// pdfBuilder assembles small PDF files for tests, with a correct xref
// table so that pdfcpu reads them without repairs.
type pdfBuilder struct {
	objs []string // index 0 is object 1
}

// alloc reserves an object number to be filled in with set
func (b *pdfBuilder) alloc() int {
	b.objs = append(b.objs, "null")
	return len(b.objs)
}

func (b *pdfBuilder) set(num int, body string) {
	b.objs[num-1] = body
}

func (b *pdfBuilder) add(body string) int {
	num := b.alloc()
	b.set(num, body)
	return num
}

func (b *pdfBuilder) stream(dict, data string) int {
	return b.add(fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data))
}

func (b *pdfBuilder) bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := make([]int, len(b.objs))
	for i, body := range b.objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(b.objs)+1, root, xref)
	return buf.Bytes()
}

type testPage struct {
	width, height float64
	rotate        int
	content       string
}

// testPDF holds the object numbers of a document under construction
type testPDF struct {
	b       *pdfBuilder
	catalog int
	pages   []int
	extra   []string // additional catalog entries
}

// newTestPDF lays out a catalog, a page tree with the given pages and a
// Helvetica font with fixed 600 unit widths, available as /F1.
func newTestPDF(pages ...testPage) *testPDF {
	b := &pdfBuilder{}
	doc := &testPDF{b: b}
	doc.catalog = b.alloc()
	tree := b.alloc()
	font := b.add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica " +
		"/Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [" +
		strings.TrimSpace(strings.Repeat("600 ", 95)) + "] >>")

	var kids []string
	for _, p := range pages {
		content := b.stream("", p.content)
		num := b.add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %g %g] /Rotate %d "+
			"/Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			tree, p.width, p.height, p.rotate, font, content))
		doc.pages = append(doc.pages, num)
		kids = append(kids, fmt.Sprintf("%d 0 R", num))
	}
	b.set(tree, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	return doc
}

func (d *testPDF) pageRef(i int) string {
	return fmt.Sprintf("%d 0 R", d.pages[i])
}

func (d *testPDF) bytes() []byte {
	d.b.set(d.catalog, fmt.Sprintf("<< /Type /Catalog /Pages 2 0 R %s >>", strings.Join(d.extra, " ")))
	return d.b.bytes(d.catalog)
}

// write stores the document in a temporary directory and returns its path
func (d *testPDF) write(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pdf")
	if err := os.WriteFile(path, d.bytes(), 0o644); err != nil {
		t.Fatalf("Failed to write PDF: %v", err)
	}
	return path
}

func letterPage(content string) testPage {
	return testPage{width: 612, height: 792, content: content}
}

func openTestDocument(t *testing.T, path string) (*Context, Document) {
	t.Helper()
	ctx := NewContext(0)
	ctx.SetWarningCallback(func(msg string) { t.Logf("engine warning: %s", msg) })
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
	return ctx, doc
}
