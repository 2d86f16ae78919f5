package document

import (
	"fmt"

	"github.com/pyhub-apps/docview-golang/pkg/engine"
)

// PageSize is the size in pixels of a rendered page
type PageSize struct {
	Width  int
	Height int
}

func checkRotation(rotation int) {
	switch rotation {
	case 0, 90, 180, 270:
	default:
		panic(fmt.Sprintf("document: unsupported rotation %d", rotation))
	}
}

// ComputeTransformMatrix returns the matrix mapping page space to pixels:
// a uniform scale by zoom preceded by a clockwise rotation. rotation must
// be 0, 90, 180 or 270.
func ComputeTransformMatrix(zoom float64, rotation int) engine.Matrix {
	checkRotation(rotation)
	return engine.Scale(zoom, zoom).PreRotate(float64(rotation))
}

// pageBoundingBox is the pixel rectangle covered by page under m
func pageBoundingBox(page engine.Page, m engine.Matrix) engine.IRect {
	return engine.RoundRect(m.TransformRect(page.Bound()))
}

// PageSize returns the size in pixels of page rendered at zoom and
// rotation. Rotations of 90 and 270 degrees swap width and height.
func (h *Handle) PageSize(page int, zoom float64, rotation int) PageSize {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.check()
	h.checkPage(page)
	checkRotation(rotation)
	return h.pageSizeLocked(page, zoom, rotation)
}

func (h *Handle) pageSizeLocked(page int, zoom float64, rotation int) PageSize {
	p, err := h.doc.LoadPage(page)
	if err != nil {
		h.log.Debug("failed to load page", "page", page, "error", err)
		return PageSize{}
	}
	defer p.Drop()

	bbox := pageBoundingBox(p, ComputeTransformMatrix(zoom, rotation))
	return PageSize{Width: bbox.Width(), Height: bbox.Height()}
}
