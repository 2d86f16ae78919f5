package engine

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/encoding/charmap"
)

// pdfFont holds what is needed to turn shown strings into glyphs: how
// codes are split, their Unicode text and their advances.
type pdfFont struct {
	name      string
	subtype   string
	codeLen   int // bytes per code: 1 for simple fonts, usually 2 for Type0
	toUnicode *toUnicodeCMap
	encoding  [256]rune
	widths    map[uint32]float64 // glyph space advances, 1 = one em
	dw        float64            // advance of codes without an explicit width
	scale     float64            // glyph space units per width unit

	fallbackMu sync.Mutex
	fallback   map[rune]float64
	buf        sfnt.Buffer
}

// fontChar is a decoded code of a shown string
type fontChar struct {
	code  uint32
	text  string
	width float64 // in em
}

func defaultEncoding() [256]rune {
	var enc [256]rune
	for i := range enc {
		enc[i] = charmap.Windows1252.DecodeByte(byte(i))
	}
	return enc
}

func macRomanEncoding() [256]rune {
	var enc [256]rune
	for i := range enc {
		enc[i] = charmap.Macintosh.DecodeByte(byte(i))
	}
	return enc
}

func newSimpleFont(name string) *pdfFont {
	return &pdfFont{
		name:     name,
		codeLen:  1,
		encoding: defaultEncoding(),
		widths:   map[uint32]float64{},
		scale:    0.001,
		fallback: map[rune]float64{},
	}
}

// defaultFont is used for text shown before any Tf
func (d *pdfDocument) defaultFont() *pdfFont {
	key := StoreKey{Owner: d, Kind: "font", ID: -1}
	if v, ok := d.ctx.StoreGet(key); ok {
		return v.(*pdfFont)
	}
	f := newSimpleFont("Helvetica")
	d.ctx.StorePut(key, f)
	return f
}

// loadFont reads a font dictionary. Fonts referenced indirectly are
// cached in the context store.
func (d *pdfDocument) loadFont(o types.Object) *pdfFont {
	if num, ok := objNum(o); ok {
		key := StoreKey{Owner: d, Kind: "font", ID: num}
		if v, ok := d.ctx.StoreGet(key); ok {
			return v.(*pdfFont)
		}
		f := d.parseFont(o)
		d.ctx.StorePut(key, f)
		return f
	}
	return d.parseFont(o)
}

func (d *pdfDocument) parseFont(o types.Object) *pdfFont {
	x := d.objs
	fd := x.dict(o)
	f := newSimpleFont(x.name(fd["BaseFont"]))
	f.subtype = x.name(fd["Subtype"])

	if tu := x.stream(fd["ToUnicode"], true); tu != nil {
		f.toUnicode = parseToUnicodeCMap(tu.Content)
	}

	if f.subtype == "Type0" {
		f.codeLen = 2
		if f.toUnicode != nil && f.toUnicode.codeLength() == 1 {
			f.codeLen = 1
		}
		if desc := x.array(fd["DescendantFonts"]); len(desc) > 0 {
			f.loadCIDWidths(x, x.dict(desc[0]))
		} else {
			f.dw = 1
		}
		return f
	}

	if f.subtype == "Type3" {
		if m, ok := x.matrix(fd["FontMatrix"]); ok {
			f.scale = m.A
		}
	}
	f.loadEncoding(x, fd["Encoding"])

	first := int(x.numberOr(fd["FirstChar"], 0))
	for i, w := range x.array(fd["Widths"]) {
		if v, ok := x.number(w); ok {
			f.widths[uint32(first+i)] = v * f.scale
		}
	}
	if fdesc := x.dict(fd["FontDescriptor"]); fdesc != nil {
		f.dw = x.numberOr(fdesc["MissingWidth"], 0) * f.scale
	}
	return f
}

func (f *pdfFont) loadEncoding(x objects, o types.Object) {
	var base string
	var diffs types.Array
	switch v := x.resolve(o).(type) {
	case types.Name:
		base = string(v)
	case types.Dict:
		base = x.name(v["BaseEncoding"])
		diffs = x.array(v["Differences"])
	}
	if base == "MacRomanEncoding" {
		f.encoding = macRomanEncoding()
	}

	code := 0
	for _, item := range diffs {
		switch v := x.resolve(item).(type) {
		case types.Integer:
			code = int(v)
		case types.Float:
			code = int(v)
		case types.Name:
			if code >= 0 && code < 256 {
				if r, ok := glyphNameToRune(string(v)); ok {
					f.encoding[code] = r
				}
			}
			code++
		}
	}
}

// loadCIDWidths reads /DW and /W of a CIDFont
func (f *pdfFont) loadCIDWidths(x objects, cid types.Dict) {
	f.dw = x.numberOr(cid["DW"], 1000) * f.scale
	w := x.array(cid["W"])
	for i := 0; i < len(w); {
		first, ok := x.number(w[i])
		if !ok || i+1 >= len(w) {
			return
		}
		if list := x.array(w[i+1]); list != nil {
			for j, v := range list {
				if width, ok := x.number(v); ok {
					f.widths[uint32(int(first)+j)] = width * f.scale
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			return
		}
		last, _ := x.number(w[i+1])
		width, _ := x.number(w[i+2])
		for c := int(first); c <= int(last) && c-int(first) < 1<<16; c++ {
			f.widths[uint32(c)] = width * f.scale
		}
		i += 3
	}
}

// decode splits a shown string into codes
func (f *pdfFont) decode(s []byte) []fontChar {
	n := f.codeLen
	out := make([]fontChar, 0, len(s)/n+1)
	for i := 0; i < len(s); i += n {
		end := min(i+n, len(s))
		code := codeOf(s[i:end])
		text := f.text(code)
		out = append(out, fontChar{code: code, text: text, width: f.width(code, text)})
	}
	return out
}

func (f *pdfFont) text(code uint32) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.lookup(code); ok {
			return s
		}
	}
	if f.codeLen == 1 && code < 256 {
		if r := f.encoding[code]; r != 0 {
			return string(r)
		}
	}
	return "\ufffd"
}

func (f *pdfFont) width(code uint32, text string) float64 {
	if w, ok := f.widths[code]; ok {
		return w
	}
	if f.dw > 0 {
		return f.dw
	}
	return f.fallbackAdvance(firstRune(text))
}

// fallbackAdvance measures r in the built-in font for fonts that carry
// no widths, such as the standard 14.
func (f *pdfFont) fallbackAdvance(r rune) float64 {
	f.fallbackMu.Lock()
	defer f.fallbackMu.Unlock()

	if w, ok := f.fallback[r]; ok {
		return w
	}
	w := 0.5
	if sf, err := fallbackFont(); err == nil {
		upem := sf.UnitsPerEm()
		if idx, err := sf.GlyphIndex(&f.buf, r); err == nil && idx != 0 {
			if adv, err := sf.GlyphAdvance(&f.buf, idx, fixed.I(int(upem)), font.HintingNone); err == nil {
				w = float64(adv) / 64 / float64(upem)
			}
		}
	}
	f.fallback[r] = w
	return w
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "quoteright": '’',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+', "comma": ',',
	"hyphen": '-', "period": '.', "slash": '/', "zero": '0', "one": '1', "two": '2',
	"three": '3', "four": '4', "five": '5', "six": '6', "seven": '7', "eight": '8',
	"nine": '9', "colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "asciicircum": '^', "underscore": '_', "grave": '`',
	"quoteleft": '‘', "braceleft": '{', "bar": '|', "braceright": '}',
	"asciitilde": '~', "bullet": '•', "endash": '–', "emdash": '—',
	"quotedblleft": '“', "quotedblright": '”', "ellipsis": '…',
	"fi": 'ﬁ', "fl": 'ﬂ', "ff": 'ﬀ', "ffi": 'ﬃ', "ffl": 'ﬄ',
	"copyright": '©', "registered": '®', "trademark": '™',
	"degree": '°', "section": '§', "paragraph": '¶', "dagger": '†',
	"daggerdbl": '‡', "minus": '−', "multiply": '×', "divide": '÷',
	"nbspace": ' ', "Euro": '€', "sterling": '£', "yen": '¥',
	"cent": '¢', "germandbls": 'ß', "adieresis": 'ä', "odieresis": 'ö',
	"udieresis": 'ü', "Adieresis": 'Ä', "Odieresis": 'Ö', "Udieresis": 'Ü',
	"eacute": 'é', "egrave": 'è', "aacute": 'á', "agrave": 'à',
	"ccedilla": 'ç', "ntilde": 'ñ', "oacute": 'ó', "uacute": 'ú',
	"iacute": 'í', "dotlessi": 'ı', "guillemotleft": '«',
	"guillemotright": '»',
}

// glyphNameToRune maps a glyph name to the character it draws
func glyphNameToRune(name string) (rune, bool) {
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 {
		c := name[0]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return rune(c), true
		}
	}
	base, _, _ := strings.Cut(name, ".")
	if base != name {
		return glyphNameToRune(base)
	}
	for _, prefix := range []string{"uni", "u"} {
		if hexPart, ok := strings.CutPrefix(name, prefix); ok && len(hexPart) >= 4 && len(hexPart) <= 6 {
			if v, err := strconv.ParseUint(hexPart[:min(len(hexPart), 6)], 16, 32); err == nil {
				if prefix == "uni" {
					v, _ = strconv.ParseUint(hexPart[:4], 16, 32)
				}
				return rune(v), true
			}
		}
	}
	return 0, false
}
