package document

import (
	"github.com/pyhub-apps/docview-golang/pkg/engine"
)

// OutlineItem is a node of a document outline. The root returned by
// Handle.Outline has no title; its children are the top level entries.
type OutlineItem struct {
	Title    string
	Children []*OutlineItem
	page     int
}

// Outline returns the outline tree, or nil when the document has none.
// Destination pages are resolved while the tree is built.
func (h *Handle) Outline() *OutlineItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.check()
	return h.outlineLocked()
}

func (h *Handle) outlineLocked() *OutlineItem {
	first, err := h.doc.LoadOutline()
	if err != nil {
		h.log.Debug("failed to load outline", "error", err)
		return nil
	}
	if first == nil {
		return nil
	}
	seen := make(map[*engine.Outline]bool)
	return &OutlineItem{Children: h.outlineChildren(first, seen)}
}

// outlineChildren converts a sibling chain and, depth first, the chains
// below it.
func (h *Handle) outlineChildren(first *engine.Outline, seen map[*engine.Outline]bool) []*OutlineItem {
	var items []*OutlineItem
	for o := first; o != nil && !seen[o]; o = o.Next {
		seen[o] = true
		item := &OutlineItem{
			Title: o.Title,
			page:  h.resolveLocked(o.URI),
		}
		item.Children = h.outlineChildren(o.Down, seen)
		items = append(items, item)
	}
	return items
}

// resolveLocked returns the page a link points at. Links that do not
// resolve lead to the first page.
func (h *Handle) resolveLocked(uri string) int {
	if uri == "" {
		return 0
	}
	page, err := h.doc.ResolveLink(uri)
	if err != nil {
		h.log.Debug("unresolved outline link", "uri", uri, "error", err)
		return 0
	}
	return min(max(page, 0), h.pages-1)
}

// Lookup returns the destination page of an item of this handle's outline
func (h *Handle) Lookup(item *OutlineItem) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.check()
	return item.page
}
