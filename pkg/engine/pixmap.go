package engine

import (
	"errors"
	"fmt"
	"image"
)

// maxPixmapBytes bounds the sample buffer of a single pixmap
const maxPixmapBytes = 1 << 30

// ErrPixmapTooLarge is returned when a pixmap would exceed maxPixmapBytes
var ErrPixmapTooLarge = errors.New("pixmap too large")

// Pixmap is an RGB pixmap with an alpha channel covering a rectangle of
// the pixel grid. Samples are stored row-major, four bytes per pixel.
type Pixmap struct {
	bbox    IRect
	img     *image.RGBA
	dropped bool
}

// NewPixmapWithBBox allocates a pixmap covering bbox. The pixmap starts
// out transparent.
func NewPixmapWithBBox(bbox IRect) (*Pixmap, error) {
	w, h := bbox.Width(), bbox.Height()
	if w*h > maxPixmapBytes/4 {
		return nil, fmt.Errorf("%dx%d: %w", w, h, ErrPixmapTooLarge)
	}
	r := image.Rect(bbox.X0, bbox.Y0, bbox.X0+w, bbox.Y0+h)
	return &Pixmap{bbox: bbox, img: image.NewRGBA(r)}, nil
}

// Clear sets every sample, alpha included, to v
func (p *Pixmap) Clear(v uint8) {
	p.check()
	for i := range p.img.Pix {
		p.img.Pix[i] = v
	}
}

// BBox returns the rectangle covered by the pixmap
func (p *Pixmap) BBox() IRect { return p.bbox }

// Width returns the width in pixels
func (p *Pixmap) Width() int { return p.bbox.Width() }

// Height returns the height in pixels
func (p *Pixmap) Height() int { return p.bbox.Height() }

// Components returns the number of samples per pixel
func (p *Pixmap) Components() int { return 4 }

// Stride returns the distance in bytes between the starts of two rows
func (p *Pixmap) Stride() int {
	p.check()
	return p.img.Stride
}

// Samples returns the sample buffer. Pixel (x, y), relative to the top
// left corner of the pixmap, starts at y*Stride() + x*Components().
func (p *Pixmap) Samples() []byte {
	p.check()
	return p.img.Pix
}

// Image exposes the pixmap as an image whose bounds equal BBox.
func (p *Pixmap) Image() *image.RGBA {
	p.check()
	return p.img
}

// Drop releases the sample buffer
func (p *Pixmap) Drop() {
	p.img = nil
	p.dropped = true
}

func (p *Pixmap) check() {
	if p.dropped {
		panic("engine: use of dropped pixmap")
	}
}
