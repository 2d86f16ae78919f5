package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const helloContent = "BT /F1 12 Tf 72 700 Td (Hello) Tj ( World) Tj ET"

func TestPDFPageCount(t *testing.T) {
	path := newTestPDF(letterPage(helloContent), letterPage(""), letterPage("")).write(t)
	_, doc := openTestDocument(t, path)

	if doc.NeedsPassword() {
		t.Fatal("Unencrypted document reports a password")
	}
	n, err := doc.CountPages()
	if err != nil {
		t.Fatalf("Failed to count pages: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 pages, got %d", n)
	}

	if _, err := doc.LoadPage(3); !errors.Is(err, ErrPageRange) {
		t.Errorf("Expected ErrPageRange for page 3, got %v", err)
	}
}

func TestPDFPageBound(t *testing.T) {
	tests := []struct {
		rotate        int
		width, height float64
	}{
		{0, 200, 100},
		{90, 100, 200},
		{180, 200, 100},
		{270, 100, 200},
		{-90, 100, 200},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("rotate %d", tt.rotate), func(t *testing.T) {
			path := newTestPDF(testPage{width: 200, height: 100, rotate: tt.rotate}).write(t)
			_, doc := openTestDocument(t, path)

			page, err := doc.LoadPage(0)
			if err != nil {
				t.Fatalf("Failed to load page: %v", err)
			}
			defer page.Drop()

			b := page.Bound()
			if b.X0 != 0 || b.Y0 != 0 || b.Width() != tt.width || b.Height() != tt.height {
				t.Errorf("Expected %gx%g at origin, got %+v", tt.width, tt.height, b)
			}
		})
	}
}

func TestPageTransformKeepsPageInsideBounds(t *testing.T) {
	box := Rect{X0: 10, Y0: 20, X1: 210, Y1: 120}
	for _, rotate := range []int{0, 90, 180, 270} {
		m, bound := pageTransform(box, rotate)
		got := m.TransformRect(box)
		if abs(got.X0-bound.X0) > 1e-9 || abs(got.Y0-bound.Y0) > 1e-9 ||
			abs(got.X1-bound.X1) > 1e-9 || abs(got.Y1-bound.Y1) > 1e-9 {
			t.Errorf("rotate %d: box maps to %+v, bound is %+v", rotate, got, bound)
		}
	}

	// the top left corner of an upright page is the origin
	m, _ := pageTransform(box, 0)
	if p := m.TransformPoint(Point{X: 10, Y: 120}); p.X != 0 || p.Y != 0 {
		t.Errorf("Expected top left corner at origin, got %+v", p)
	}
}

func TestPDFInterpreterText(t *testing.T) {
	content := "BT /F1 12 Tf 72 700 Td (First line) Tj 0 -14 Td (Second line) Tj ET " +
		"BT /F1 12 Tf 72 400 Td (Far below) Tj ET"
	path := newTestPDF(letterPage(content)).write(t)
	_, doc := openTestDocument(t, path)

	page, err := doc.LoadPage(0)
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	defer page.Drop()

	dev := NewTextDevice(page.Bound())
	if err := page.Run(dev, Identity); err != nil {
		t.Fatalf("Failed to run page: %v", err)
	}
	dev.Close()
	tp := dev.TextPage()

	if len(tp.Blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(tp.Blocks))
	}
	var lines []string
	for _, b := range tp.Blocks {
		for _, l := range b.Lines {
			lines = append(lines, l.Text())
		}
	}
	want := []string{"First line", "Second line", "Far below"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("Expected lines %q, got %q", want, lines)
	}

	first := tp.Blocks[0].Lines[0].Chars[0]
	if abs(first.Origin.X-72) > 0.01 || abs(first.Origin.Y-92) > 0.01 {
		t.Errorf("Expected first char at (72, 92), got %+v", first.Origin)
	}
	if abs(first.Size-12) > 0.01 {
		t.Errorf("Expected size 12, got %g", first.Size)
	}
}

func TestPDFTextPage(t *testing.T) {
	path := newTestPDF(letterPage(helloContent)).write(t)
	_, doc := openTestDocument(t, path)

	page, err := doc.LoadPage(0)
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	defer page.Drop()

	tp, err := NewTextPageFromPage(page)
	if err != nil {
		t.Fatalf("Failed to extract text: %v", err)
	}
	if tp.LineCount() != 1 {
		t.Fatalf("Expected 1 line, got %d", tp.LineCount())
	}
	if got := tp.Blocks[0].Lines[0].Text(); !strings.Contains(got, "Hello") {
		t.Errorf("Expected line to contain 'Hello', got %q", got)
	}
}

func TestPDFEmptyPageText(t *testing.T) {
	path := newTestPDF(letterPage("0 0 1 rg 10 10 50 50 re f")).write(t)
	_, doc := openTestDocument(t, path)

	page, err := doc.LoadPage(0)
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	defer page.Drop()

	tp, err := NewTextPageFromPage(page)
	if err != nil {
		t.Fatalf("Failed to extract text: %v", err)
	}
	if tp.LineCount() != 0 {
		t.Errorf("Expected no lines, got %d", tp.LineCount())
	}
}

func TestPDFRender(t *testing.T) {
	path := newTestPDF(letterPage("0 0 1 rg 0 0 306 792 re f")).write(t)
	_, doc := openTestDocument(t, path)

	page, err := doc.LoadPage(0)
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	defer page.Drop()

	ctm := Scale(0.1, 0.1)
	bbox := RoundRect(ctm.TransformRect(page.Bound()))
	pix, err := NewPixmapWithBBox(bbox)
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

	if bbox.Width() != 62 || bbox.Height() != 80 {
		t.Fatalf("Expected 62x80 pixmap, got %dx%d", bbox.Width(), bbox.Height())
	}
	img := pix.Image()
	if c := img.RGBAAt(10, 40); c.R != 0 || c.G != 0 || c.B != 0xff {
		t.Errorf("Expected blue on the left half, got %+v", c)
	}
	if c := img.RGBAAt(50, 40); c.R != 0xff || c.G != 0xff || c.B != 0xff {
		t.Errorf("Expected white on the right half, got %+v", c)
	}
}

// outlinePDF has three pages and the outline
//
//	Chapter 1 -> page 1
//	  Section -> named destination "sec" (catalog /Dests) -> page 2
//	Chapter 2 -> named destination "other" (name tree) -> page 3
//	External -> URI action
func outlinePDF(t *testing.T) string {
	t.Helper()
	doc := newTestPDF(letterPage(""), letterPage(""), letterPage(""))
	b := doc.b

	root := b.alloc()
	ch1 := b.alloc()
	sec := b.alloc()
	ch2 := b.alloc()
	ext := b.alloc()

	b.set(root, fmt.Sprintf("<< /Type /Outlines /First %d 0 R /Last %d 0 R /Count 3 >>", ch1, ext))
	b.set(ch1, fmt.Sprintf("<< /Title (Chapter 1) /Parent %d 0 R /Next %d 0 R /First %d 0 R /Last %d 0 R /Count 1 /Dest [%s /XYZ 0 792 0] >>",
		root, ch2, sec, sec, doc.pageRef(0)))
	b.set(sec, fmt.Sprintf("<< /Title <FEFF00530065006300740069006F006E> /Parent %d 0 R /Dest /sec >>", ch1))
	b.set(ch2, fmt.Sprintf("<< /Title (Chapter 2) /Parent %d 0 R /Prev %d 0 R /Next %d 0 R /A << /S /GoTo /D (other) >> >>",
		root, ch1, ext))
	b.set(ext, fmt.Sprintf("<< /Title (External) /Parent %d 0 R /Prev %d 0 R /A << /S /URI /URI (https://example.com/) >> >>",
		root, ch2))

	doc.extra = append(doc.extra,
		fmt.Sprintf("/Outlines %d 0 R", root),
		fmt.Sprintf("/Dests << /sec [%s /Fit] >>", doc.pageRef(1)),
		fmt.Sprintf("/Names << /Dests << /Names [(other) [%s /Fit]] >> >>", doc.pageRef(2)),
	)
	return doc.write(t)
}

func TestPDFOutline(t *testing.T) {
	_, doc := openTestDocument(t, outlinePDF(t))

	outline, err := doc.LoadOutline()
	if err != nil {
		t.Fatalf("Failed to load outline: %v", err)
	}
	if outline == nil {
		t.Fatal("Expected an outline")
	}

	type entry struct{ title, uri string }
	var got []entry
	for o := outline; o != nil; o = o.Next {
		got = append(got, entry{o.Title, o.URI})
	}
	want := []entry{
		{"Chapter 1", "#page=1"},
		{"Chapter 2", "#nameddest=other"},
		{"External", "https://example.com/"},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d top level entries, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	child := outline.Down
	if child == nil || child.Next != nil {
		t.Fatalf("Expected exactly one child of Chapter 1, got %+v", child)
	}
	if child.Title != "Section" || child.URI != "#nameddest=sec" {
		t.Errorf("Unexpected child %+v", child)
	}
	if outline.Next.Down != nil {
		t.Errorf("Chapter 2 should have no children")
	}
}

func TestPDFResolveLink(t *testing.T) {
	_, doc := openTestDocument(t, outlinePDF(t))

	tests := []struct {
		uri  string
		page int
		ok   bool
	}{
		{"#page=1", 0, true},
		{"#page=3", 2, true},
		{"#2", 1, true},
		{"#nameddest=sec", 1, true},
		{"#nameddest=other", 2, true},
		{"#page=4", 0, false},
		{"#page=0", 0, false},
		{"#nameddest=missing", 0, false},
		{"https://example.com/", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			page, err := doc.ResolveLink(tt.uri)
			if !tt.ok {
				if !errors.Is(err, ErrUnresolvedLink) {
					t.Errorf("Expected ErrUnresolvedLink, got page %d, err %v", page, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to resolve: %v", err)
			}
			if page != tt.page {
				t.Errorf("Expected page %d, got %d", tt.page, page)
			}
		})
	}
}

func TestPDFNoOutline(t *testing.T) {
	_, doc := openTestDocument(t, newTestPDF(letterPage("")).write(t))

	outline, err := doc.LoadOutline()
	if err != nil {
		t.Fatalf("Failed to load outline: %v", err)
	}
	if outline != nil {
		t.Errorf("Expected no outline, got %+v", outline)
	}
}

// encryptedPDF writes a single page document protected by the user
// password "user".
func encryptedPDF(t *testing.T) string {
	t.Helper()
	plain := newTestPDF(letterPage(helloContent)).bytes()

	var out bytes.Buffer
	conf := model.NewAESConfiguration("user", "owner", 256)
	if err := api.Encrypt(bytes.NewReader(plain), &out, conf); err != nil {
		t.Skipf("pdfcpu cannot encrypt the test document: %v", err)
	}

	path := filepath.Join(t.TempDir(), "encrypted.pdf")
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("Failed to write PDF: %v", err)
	}
	return path
}

func TestPDFPassword(t *testing.T) {
	_, doc := openTestDocument(t, encryptedPDF(t))

	if !doc.NeedsPassword() {
		t.Fatal("Expected the document to need a password")
	}
	if _, err := doc.CountPages(); !errors.Is(err, ErrNeedsPassword) {
		t.Errorf("Expected ErrNeedsPassword before authentication, got %v", err)
	}
	if doc.AuthenticatePassword("wrong") {
		t.Error("Wrong password accepted")
	}
	if !doc.AuthenticatePassword("user") {
		t.Fatal("Correct password rejected")
	}
	if doc.NeedsPassword() {
		t.Error("Document still locked after authentication")
	}

	n, err := doc.CountPages()
	if err != nil {
		t.Fatalf("Failed to count pages: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 page, got %d", n)
	}
}

func TestDecodeTextString(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain", []byte("Chapter"), "Chapter"},
		{"utf16", []byte{0xfe, 0xff, 0x00, 0x48, 0xd5, 0x5c}, "H한"},
		{"utf8 bom", []byte("\xef\xbb\xbfcaf\xc3\xa9"), "café"},
		{"winansi", []byte("caf\xe9 \x93q\x94"), "café “q”"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeTextString(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
