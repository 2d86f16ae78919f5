package document

import (
	"fmt"
	"testing"

	"github.com/pyhub-apps/docview-golang/pkg/engine/enginetest"
)

func TestPageSize(t *testing.T) {
	doc := &enginetest.Document{Pages: []enginetest.Page{{Width: 100.4, Height: 50}}}
	h := openFake(t, doc)

	tests := []struct {
		zoom     float64
		rotation int
		want     PageSize
	}{
		{1, 0, PageSize{101, 50}},
		{1, 90, PageSize{50, 101}},
		{1, 180, PageSize{101, 50}},
		{1, 270, PageSize{50, 101}},
		{1.5, 0, PageSize{151, 75}},
		{2, 90, PageSize{100, 201}},
		{0, 0, PageSize{0, 0}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("zoom %g rotation %d", tt.zoom, tt.rotation), func(t *testing.T) {
			if got := h.PageSize(0, tt.zoom, tt.rotation); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}

	expectPanic(t, "rotation 45", func() { h.PageSize(0, 1, 45) })
	expectPanic(t, "page 1", func() { h.PageSize(1, 1, 0) })
}

func TestComputeTransformMatrix(t *testing.T) {
	m := ComputeTransformMatrix(2, 90)
	x, y := m.Transform(1, 0)
	if x != 0 || y != 2 {
		t.Errorf("Expected (1, 0) to map to (0, 2), got (%g, %g)", x, y)
	}

	m = ComputeTransformMatrix(3, 0)
	if x, y := m.Transform(1, 1); x != 3 || y != 3 {
		t.Errorf("Expected (3, 3), got (%g, %g)", x, y)
	}

	expectPanic(t, "rotation -90", func() { ComputeTransformMatrix(1, -90) })
}
