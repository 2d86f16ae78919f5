package document

import (
	"fmt"
	"image"

	"github.com/pyhub-apps/docview-golang/pkg/engine"
)

// PixelWriter receives rendered pixels. Write is called concurrently,
// never twice for the same coordinates during one render.
type PixelWriter interface {
	Write(x, y int, r, g, b uint8)
}

// PixelWriterFunc adapts a function to PixelWriter
type PixelWriterFunc func(x, y int, r, g, b uint8)

func (f PixelWriterFunc) Write(x, y int, r, g, b uint8) { f(x, y, r, g, b) }

// Render draws page at zoom and rotation and sends every pixel of the
// page's bounding box to w, with coordinates relative to the box. Pixels
// are written by Runner.Workers() goroutines, each owning a horizontal
// stripe. An engine failure returns an error wrapping ErrRender before
// anything is written.
func (h *Handle) Render(w PixelWriter, page int, zoom float64, rotation int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.check()
	h.checkPage(page)
	checkRotation(rotation)
	return h.renderLocked(w, page, zoom, rotation)
}

func (h *Handle) renderLocked(w PixelWriter, page int, zoom float64, rotation int) error {
	m := ComputeTransformMatrix(zoom, rotation)

	p, err := h.doc.LoadPage(page)
	if err != nil {
		return fmt.Errorf("%w: page %d: %w", ErrRender, page, err)
	}
	defer p.Drop()

	bbox := pageBoundingBox(p, m)
	if bbox.IsEmpty() {
		return nil
	}

	pix, err := engine.NewPixmapWithBBox(bbox)
	if err != nil {
		return fmt.Errorf("%w: page %d: %w", ErrRender, page, err)
	}
	defer pix.Drop()
	pix.Clear(0xff)

	dev := engine.NewDrawDevice(engine.Identity, pix)
	defer dev.Drop()
	if err := p.Run(dev, m); err != nil {
		return fmt.Errorf("%w: page %d: %w", ErrRender, page, err)
	}
	if err := dev.Close(); err != nil {
		return fmt.Errorf("%w: page %d: %w", ErrRender, page, err)
	}

	copyPixmap(w, pix, h.runner)
	h.log.Debug("page rendered", "page", page, "width", bbox.Width(), "height", bbox.Height())
	return nil
}

// copyPixmap splits the pixmap into one stripe of rows per worker and
// writes the stripes in parallel. The last stripe takes the remainder.
func copyPixmap(w PixelWriter, pix *engine.Pixmap, runner Runner) {
	samples := pix.Samples()
	stride := pix.Stride()
	n := pix.Components()
	width, height := pix.Width(), pix.Height()

	stripes := max(runner.Workers(), 1)
	rows := height / stripes
	runner.Run(stripes, func(i int) {
		y0, y1 := rows*i, rows*(i+1)
		if i == stripes-1 {
			y1 = height
		}
		for y := y0; y < y1; y++ {
			row := samples[y*stride:]
			for x := 0; x < width; x++ {
				off := x * n
				w.Write(x, y, row[off], row[off+1], row[off+2])
			}
		}
	})
}

// ImageWriter collects rendered pixels into an opaque RGBA image
type ImageWriter struct {
	img *image.RGBA
}

// NewImageWriter returns a writer for a page of the given size
func NewImageWriter(size PageSize) *ImageWriter {
	return &ImageWriter{img: image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))}
}

func (iw *ImageWriter) Write(x, y int, r, g, b uint8) {
	off := iw.img.PixOffset(x, y)
	p := iw.img.Pix[off : off+4 : off+4]
	p[0], p[1], p[2], p[3] = r, g, b, 0xff
}

// Image returns the collected image
func (iw *ImageWriter) Image() *image.RGBA {
	return iw.img
}

// RenderImage renders page into a new image
func (h *Handle) RenderImage(page int, zoom float64, rotation int) (*image.RGBA, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.check()
	h.checkPage(page)
	checkRotation(rotation)

	w := NewImageWriter(h.pageSizeLocked(page, zoom, rotation))
	if err := h.renderLocked(w, page, zoom, rotation); err != nil {
		return nil, err
	}
	return w.Image(), nil
}
