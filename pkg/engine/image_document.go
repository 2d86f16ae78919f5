package engine

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExtensions = []string{"png", "jpg", "jpeg", "gif", "tif", "tiff", "bmp", "webp"}

type imageHandler struct{}

// ImageHandler returns the handler for single image files. The image
// becomes a one page document at 72 pixels per inch.
func ImageHandler() DocumentHandler { return imageHandler{} }

func (imageHandler) Name() string { return "image" }

func (imageHandler) Extensions() []string { return imageExtensions }

func (imageHandler) Recognize(header []byte) bool {
	return isImageHeader(header)
}

func isImageHeader(h []byte) bool {
	switch {
	case bytes.HasPrefix(h, []byte("\x89PNG\r\n\x1a\n")),
		bytes.HasPrefix(h, []byte{0xff, 0xd8, 0xff}),
		bytes.HasPrefix(h, []byte("GIF87a")),
		bytes.HasPrefix(h, []byte("GIF89a")),
		bytes.HasPrefix(h, []byte("II*\x00")),
		bytes.HasPrefix(h, []byte("MM\x00*")),
		bytes.HasPrefix(h, []byte("BM")):
		return true
	case len(h) >= 12 && bytes.Equal(h[:4], []byte("RIFF")) && bytes.Equal(h[8:12], []byte("WEBP")):
		return true
	}
	return false
}

func (imageHandler) Open(_ *Context, path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &imageDocument{img: img, format: format}, nil
}

type imageDocument struct {
	img     image.Image
	format  string
	dropped bool
}

func (d *imageDocument) check() {
	if d.dropped {
		panic("engine: use of dropped document")
	}
}

func (d *imageDocument) CountPages() (int, error) {
	d.check()
	return 1, nil
}

func (d *imageDocument) NeedsPassword() bool { return false }

func (d *imageDocument) AuthenticatePassword(string) bool { return true }

func (d *imageDocument) LoadPage(number int) (Page, error) {
	d.check()
	if number != 0 {
		return nil, fmt.Errorf("page %d of 1: %w", number, ErrPageRange)
	}
	return newImagePage(d.img), nil
}

func (d *imageDocument) LoadOutline() (*Outline, error) {
	d.check()
	return nil, nil
}

func (d *imageDocument) ResolveLink(uri string) (int, error) {
	d.check()
	return resolvePageURI(uri, 1)
}

func (d *imageDocument) Drop() {
	d.img = nil
	d.dropped = true
}

// imagePage shows one raster image covering the whole page
type imagePage struct {
	img     image.Image
	dropped bool
}

func newImagePage(img image.Image) *imagePage {
	return &imagePage{img: img}
}

func (p *imagePage) Bound() Rect {
	b := p.img.Bounds()
	return Rect{X1: float64(b.Dx()), Y1: float64(b.Dy())}
}

func (p *imagePage) Run(dev Device, ctm Matrix) error {
	if p.dropped {
		panic("engine: use of dropped page")
	}
	b := p.Bound()
	return dev.FillImage(p.img, Scale(b.X1, b.Y1).Multiply(ctm), 1)
}

func (p *imagePage) Drop() {
	p.dropped = true
}

// resolvePageURI resolves #page=N links (1-based) of documents without
// named destinations.
func resolvePageURI(uri string, pages int) (int, error) {
	frag, ok := strings.CutPrefix(uri, "#")
	if ok {
		frag = strings.TrimPrefix(frag, "page=")
		if n, err := strconv.Atoi(frag); err == nil && n >= 1 && n <= pages {
			return n - 1, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", uri, ErrUnresolvedLink)
}
