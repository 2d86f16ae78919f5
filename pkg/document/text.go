package document

import (
	"strings"

	"github.com/pyhub-apps/docview-golang/pkg/engine"
)

// PageText returns the text of page in reading order, lines joined by
// lineSeparator. Pages without text, and pages the engine fails on,
// give the empty string.
func (h *Handle) PageText(page int, lineSeparator rune) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.check()
	h.checkPage(page)
	return h.pageTextLocked(page, lineSeparator)
}

func (h *Handle) pageTextLocked(page int, lineSeparator rune) string {
	p, err := h.doc.LoadPage(page)
	if err != nil {
		h.log.Debug("failed to load page", "page", page, "error", err)
		return ""
	}
	defer p.Drop()

	tp, err := engine.NewTextPageFromPage(p)
	if err != nil {
		h.log.Debug("failed to extract text", "page", page, "error", err)
		return ""
	}

	var sb strings.Builder
	first := true
	for _, block := range tp.Blocks {
		for _, line := range block.Lines {
			if !first {
				sb.WriteRune(lineSeparator)
			}
			first = false
			for _, c := range line.Chars {
				sb.WriteString(c.Text)
			}
		}
	}
	return sb.String()
}
