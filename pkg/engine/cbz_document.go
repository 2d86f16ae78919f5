package engine

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"path"
	"sort"
	"strings"
	"unicode"
)

type cbzHandler struct{}

// CBZHandler returns the handler for comic book archives: ZIP files
// whose image entries are the pages, in natural name order.
func CBZHandler() DocumentHandler { return cbzHandler{} }

func (cbzHandler) Name() string { return "cbz" }

func (cbzHandler) Extensions() []string { return []string{"cbz", "zip"} }

func (cbzHandler) Recognize(header []byte) bool {
	return bytes.HasPrefix(header, []byte("PK\x03\x04"))
}

func (cbzHandler) Open(ctx *Context, name string) (Document, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	var entries []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(f.Name)), ".")
		for _, e := range imageExtensions {
			if e == ext {
				entries = append(entries, f)
				break
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return naturalLess(entries[i].Name, entries[j].Name)
	})

	return &cbzDocument{ctx: ctx, zr: zr, entries: entries}, nil
}

type cbzDocument struct {
	ctx     *Context
	zr      *zip.ReadCloser
	entries []*zip.File
	dropped bool
}

func (d *cbzDocument) check() {
	if d.dropped {
		panic("engine: use of dropped document")
	}
}

func (d *cbzDocument) CountPages() (int, error) {
	d.check()
	return len(d.entries), nil
}

func (d *cbzDocument) NeedsPassword() bool { return false }

func (d *cbzDocument) AuthenticatePassword(string) bool { return true }

func (d *cbzDocument) LoadPage(number int) (Page, error) {
	d.check()
	if number < 0 || number >= len(d.entries) {
		return nil, fmt.Errorf("page %d of %d: %w", number, len(d.entries), ErrPageRange)
	}

	key := StoreKey{Owner: d, Kind: "image", ID: number}
	if v, ok := d.ctx.StoreGet(key); ok {
		return newImagePage(v.(image.Image)), nil
	}

	entry := d.entries[number]
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", entry.Name, err)
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", entry.Name, err)
	}
	d.ctx.StorePut(key, img)
	return newImagePage(img), nil
}

func (d *cbzDocument) LoadOutline() (*Outline, error) {
	d.check()
	return nil, nil
}

func (d *cbzDocument) ResolveLink(uri string) (int, error) {
	d.check()
	return resolvePageURI(uri, len(d.entries))
}

func (d *cbzDocument) Drop() {
	if d.dropped {
		return
	}
	d.ctx.StoreForget(d)
	d.zr.Close()
	d.entries = nil
	d.dropped = true
}

// naturalLess orders names so that embedded numbers compare by value:
// page2.png sorts before page10.png.
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := rune(a[0]), rune(b[0])
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			na, ra := leadingDigits(a)
			nb, rb := leadingDigits(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			a, b = ra, rb
			continue
		}
		la, lb := unicode.ToLower(ca), unicode.ToLower(cb)
		if la != lb {
			return la < lb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}
