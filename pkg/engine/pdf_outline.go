package engine

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const (
	maxOutlineDepth  = 64
	maxNameTreeDepth = 32
)

// LoadOutline walks the /Outlines tree of the catalog. Entries that
// were already visited are skipped, which breaks cycles in damaged files.
func (d *pdfDocument) LoadOutline() (*Outline, error) {
	d.check()
	if d.locked {
		return nil, ErrNeedsPassword
	}
	catalog, err := d.pdf.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	root := d.objs.dict(catalog["Outlines"])
	if root == nil {
		return nil, nil
	}
	visited := map[int]bool{}
	return d.outlineBranch(root["First"], visited, 0), nil
}

func (d *pdfDocument) outlineBranch(o types.Object, visited map[int]bool, depth int) *Outline {
	if depth > maxOutlineDepth {
		d.ctx.Warnf("pdf: outline nested too deep")
		return nil
	}

	var first, last *Outline
	for o != nil {
		if num, ok := objNum(o); ok {
			if visited[num] {
				d.ctx.Warnf("pdf: outline cycle at object %d", num)
				break
			}
			visited[num] = true
		}
		dict := d.objs.dict(o)
		if dict == nil {
			break
		}

		item := &Outline{
			Title: d.objs.text(dict["Title"]),
			URI:   d.outlineURI(dict),
		}
		item.Down = d.outlineBranch(dict["First"], visited, depth+1)

		if first == nil {
			first = item
		} else {
			last.Next = item
		}
		last = item
		o = dict["Next"]
	}
	return first
}

// outlineURI turns the destination of an outline entry into a link URI
func (d *pdfDocument) outlineURI(item types.Dict) string {
	if dest := item["Dest"]; dest != nil {
		return d.destURI(dest)
	}
	action := d.objs.dict(item["A"])
	if action == nil {
		return ""
	}
	switch d.objs.name(action["S"]) {
	case "GoTo":
		return d.destURI(action["D"])
	case "URI":
		if b, ok := d.objs.rawString(action["URI"]); ok {
			return string(b)
		}
	}
	return ""
}

func (d *pdfDocument) destURI(dest types.Object) string {
	switch v := d.objs.resolve(dest).(type) {
	case types.Name:
		return "#nameddest=" + url.PathEscape(string(v))
	case types.StringLiteral, types.HexLiteral:
		b, _ := d.objs.rawString(v)
		return "#nameddest=" + url.PathEscape(string(b))
	}
	if page, ok := d.destPage(dest); ok {
		return "#page=" + strconv.Itoa(page+1)
	}
	return ""
}

// destPage resolves an explicit destination to a page index
func (d *pdfDocument) destPage(dest types.Object) (int, bool) {
	var target types.Object
	switch v := d.objs.resolve(dest).(type) {
	case types.Array:
		if len(v) == 0 {
			return 0, false
		}
		target = v[0]
	case types.Dict:
		return d.destPage(v["D"])
	default:
		return 0, false
	}

	if num, ok := objNum(target); ok {
		page, ok := d.pageRefs[num]
		return page, ok
	}
	// some producers write the page index instead of a reference
	if n, ok := d.objs.number(target); ok {
		return int(n), true
	}
	return 0, false
}

// ResolveLink returns the page a #page=N or #nameddest=NAME link points at.
func (d *pdfDocument) ResolveLink(uri string) (int, error) {
	d.check()
	if d.locked {
		return 0, ErrNeedsPassword
	}

	frag, ok := strings.CutPrefix(uri, "#")
	if !ok {
		return 0, fmt.Errorf("%q: %w", uri, ErrUnresolvedLink)
	}

	page := -1
	switch {
	case strings.HasPrefix(frag, "page="):
		n, err := strconv.Atoi(strings.TrimPrefix(frag, "page="))
		if err == nil {
			page = n - 1
		}
	case strings.HasPrefix(frag, "nameddest="):
		name, err := url.PathUnescape(strings.TrimPrefix(frag, "nameddest="))
		if err == nil {
			if dest := d.lookupNamedDest(name); dest != nil {
				if p, ok := d.destPage(dest); ok {
					page = p
				}
			}
		}
	default:
		if n, err := strconv.Atoi(frag); err == nil {
			page = n - 1
		}
	}

	if page < 0 || page >= d.pdf.PageCount {
		return 0, fmt.Errorf("%q: %w", uri, ErrUnresolvedLink)
	}
	return page, nil
}

// lookupNamedDest finds a named destination in the catalog /Dests
// dictionary or in the /Names /Dests name tree.
func (d *pdfDocument) lookupNamedDest(name string) types.Object {
	catalog, err := d.pdf.Catalog()
	if err != nil {
		return nil
	}
	if dests := d.objs.dict(catalog["Dests"]); dests != nil {
		if v, ok := dests[name]; ok {
			return v
		}
	}
	names := d.objs.dict(catalog["Names"])
	if names == nil {
		return nil
	}
	return d.nameTreeLookup(names["Dests"], name, 0)
}

func (d *pdfDocument) nameTreeLookup(node types.Object, name string, depth int) types.Object {
	if depth > maxNameTreeDepth {
		return nil
	}
	dict := d.objs.dict(node)
	if dict == nil {
		return nil
	}

	entries := d.objs.array(dict["Names"])
	for i := 0; i+1 < len(entries); i += 2 {
		if key, ok := d.objs.rawString(entries[i]); ok && string(key) == name {
			return entries[i+1]
		}
	}
	for _, kid := range d.objs.array(dict["Kids"]) {
		if limits := d.objs.array(d.objs.dict(kid)["Limits"]); len(limits) == 2 {
			lo, _ := d.objs.rawString(limits[0])
			hi, _ := d.objs.rawString(limits[1])
			if name < string(lo) || name > string(hi) {
				continue
			}
		}
		if v := d.nameTreeLookup(kid, name, depth+1); v != nil {
			return v
		}
	}
	return nil
}
