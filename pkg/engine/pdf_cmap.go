package engine

import (
	"regexp"
	"strings"
	"unicode/utf16"
)

var (
	bfcharSection   = regexp.MustCompile(`(?s)beginbfchar(.*?)endbfchar`)
	bfcharEntry     = regexp.MustCompile(`<([0-9A-Fa-f\s]+)>\s*<([0-9A-Fa-f\s]*)>`)
	bfrangeSection  = regexp.MustCompile(`(?s)beginbfrange(.*?)endbfrange`)
	bfrangeEntry    = regexp.MustCompile(`<([0-9A-Fa-f\s]+)>\s*<([0-9A-Fa-f\s]+)>\s*(<[0-9A-Fa-f\s]*>|\[[^\]]*\])`)
	codespaceSect   = regexp.MustCompile(`(?s)begincodespacerange(.*?)endcodespacerange`)
	codespaceEntry  = regexp.MustCompile(`<([0-9A-Fa-f\s]+)>\s*<([0-9A-Fa-f\s]+)>`)
	hexStringInList = regexp.MustCompile(`<([0-9A-Fa-f\s]*)>`)
)

// toUnicodeCMap maps character codes of a font to Unicode text
type toUnicodeCMap struct {
	chars  map[uint32]string
	ranges []cmapRange
	// codeLengths lists the byte lengths declared by codespace ranges
	codeLengths []int
}

// cmapRange is a contiguous range mapping from a bfrange section
type cmapRange struct {
	start, end uint32
	dst        []uint16 // destination of start, as UTF-16 units
	array      []string // explicit destinations, one per code
}

func newToUnicodeCMap() *toUnicodeCMap {
	return &toUnicodeCMap{chars: make(map[uint32]string)}
}

// parseToUnicodeCMap parses a ToUnicode CMap stream
func parseToUnicodeCMap(data []byte) *toUnicodeCMap {
	cmap := newToUnicodeCMap()
	content := string(data)

	for _, sect := range codespaceSect.FindAllStringSubmatch(content, -1) {
		for _, m := range codespaceEntry.FindAllStringSubmatch(sect[1], -1) {
			if n := len(decodeHex([]byte(m[1]))); n > 0 {
				cmap.codeLengths = append(cmap.codeLengths, n)
			}
		}
	}

	for _, sect := range bfcharSection.FindAllStringSubmatch(content, -1) {
		for _, m := range bfcharEntry.FindAllStringSubmatch(sect[1], -1) {
			src := decodeHex([]byte(m[1]))
			if len(src) == 0 {
				continue
			}
			cmap.chars[codeOf(src)] = utf16BytesToString(decodeHex([]byte(m[2])))
		}
	}

	for _, sect := range bfrangeSection.FindAllStringSubmatch(content, -1) {
		for _, m := range bfrangeEntry.FindAllStringSubmatch(sect[1], -1) {
			lo := decodeHex([]byte(m[1]))
			hi := decodeHex([]byte(m[2]))
			if len(lo) == 0 || len(hi) == 0 {
				continue
			}
			r := cmapRange{start: codeOf(lo), end: codeOf(hi)}
			if r.end < r.start {
				continue
			}
			if strings.HasPrefix(m[3], "[") {
				for _, item := range hexStringInList.FindAllStringSubmatch(m[3], -1) {
					r.array = append(r.array, utf16BytesToString(decodeHex([]byte(item[1]))))
				}
			} else {
				r.dst = bytesToUTF16(decodeHex([]byte(strings.Trim(m[3], "<>"))))
				if len(r.dst) == 0 {
					continue
				}
			}
			cmap.ranges = append(cmap.ranges, r)
		}
	}
	return cmap
}

func codeOf(b []byte) uint32 {
	var c uint32
	for _, x := range b {
		c = c<<8 | uint32(x)
	}
	return c
}

func bytesToUTF16(b []byte) []uint16 {
	if len(b) == 1 {
		return []uint16{uint16(b[0])}
	}
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return u
}

// utf16BytesToString decodes UTF-16BE, dropping a leading byte order mark
func utf16BytesToString(b []byte) string {
	u := bytesToUTF16(b)
	if len(u) > 1 && u[0] == 0xfeff {
		u = u[1:]
	}
	return string(utf16.Decode(u))
}

// lookup maps a character code to its Unicode text
func (cmap *toUnicodeCMap) lookup(code uint32) (string, bool) {
	if s, ok := cmap.chars[code]; ok {
		return s, true
	}
	for _, r := range cmap.ranges {
		if code < r.start || code > r.end {
			continue
		}
		off := code - r.start
		if r.array != nil {
			if int(off) < len(r.array) {
				return r.array[off], true
			}
			return "", false
		}
		// the offset is added to the last UTF-16 unit of the destination
		dst := make([]uint16, len(r.dst))
		copy(dst, r.dst)
		dst[len(dst)-1] += uint16(off)
		return string(utf16.Decode(dst)), true
	}
	return "", false
}

// codeLength returns the byte length of codes, or 0 when the CMap does
// not declare a codespace.
func (cmap *toUnicodeCMap) codeLength() int {
	if len(cmap.codeLengths) == 0 {
		return 0
	}
	return cmap.codeLengths[0]
}

// mappingCount returns the number of codes the CMap maps
func (cmap *toUnicodeCMap) mappingCount() int {
	n := len(cmap.chars)
	for _, r := range cmap.ranges {
		if r.array != nil {
			n += len(r.array)
		} else {
			n += int(r.end-r.start) + 1
		}
	}
	return n
}
