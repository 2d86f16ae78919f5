package enginetest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// TextContent returns a content stream showing lines of text in 12pt
// Helvetica, 14pt apart, starting one inch below the top of a US Letter
// page. Lines must not contain parentheses or backslashes.
func TextContent(lines ...string) string {
	var sb strings.Builder
	sb.WriteString("BT /F1 12 Tf 72 720 Td")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString(" 0 -14 Td")
		}
		fmt.Fprintf(&sb, " (%s) Tj", line)
	}
	sb.WriteString(" ET")
	return sb.String()
}

// WritePDF writes a PDF with one US Letter page per content stream. The
// pages share a Helvetica font named /F1 with fixed 600 unit widths.
func WritePDF(path string, contents ...string) error {
	// objects: 1 catalog, 2 page tree, 3 font, then page and content pairs
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding " +
			"/FirstChar 32 /LastChar 126 /Widths [" + strings.TrimSpace(strings.Repeat("600 ", 95)) + "] >>",
	}
	var kids []string
	for _, content := range contents {
		pageNum := len(objs) + 1
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageNum+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(contents))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// EncryptPDF writes an AES-256 encrypted copy of src to dst.
func EncryptPDF(src, dst, userPassword, ownerPassword string) error {
	model.ConfigPath = "disable"
	conf := model.NewAESConfiguration(userPassword, ownerPassword, 256)
	return api.EncryptFile(src, dst, conf)
}
