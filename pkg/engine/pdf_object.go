package engine

import (
	"bytes"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// objects wraps the cross reference table of an open PDF with lenient
// accessors: anything that cannot be resolved reads as the zero value.
type objects struct {
	ctx *model.Context
}

func indirect(o types.Object) (types.IndirectRef, bool) {
	switch v := o.(type) {
	case types.IndirectRef:
		return v, true
	case *types.IndirectRef:
		if v != nil {
			return *v, true
		}
	}
	return types.IndirectRef{}, false
}

// objNum returns the object number of an indirect reference
func objNum(o types.Object) (int, bool) {
	ref, ok := indirect(o)
	if !ok {
		return 0, false
	}
	return int(ref.ObjectNumber), true
}

func (x objects) resolve(o types.Object) types.Object {
	for range 32 {
		ref, ok := indirect(o)
		if !ok {
			return o
		}
		r, err := x.ctx.Dereference(ref)
		if err != nil {
			return nil
		}
		o = r
	}
	return nil
}

func (x objects) dict(o types.Object) types.Dict {
	switch v := x.resolve(o).(type) {
	case types.Dict:
		return v
	case types.StreamDict:
		return v.Dict
	case *types.StreamDict:
		if v != nil {
			return v.Dict
		}
	}
	return nil
}

func (x objects) array(o types.Object) types.Array {
	if a, ok := x.resolve(o).(types.Array); ok {
		return a
	}
	return nil
}

func (x objects) number(o types.Object) (float64, bool) {
	switch v := x.resolve(o).(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

func (x objects) numberOr(o types.Object, def float64) float64 {
	if f, ok := x.number(o); ok {
		return f
	}
	return def
}

func (x objects) name(o types.Object) string {
	if n, ok := x.resolve(o).(types.Name); ok {
		return string(n)
	}
	return ""
}

func (x objects) boolean(o types.Object) bool {
	b, ok := x.resolve(o).(types.Boolean)
	return ok && bool(b)
}

// stream returns the stream an object refers to, decoded. decode=false
// leaves Content empty and only Raw filled.
func (x objects) stream(o types.Object, decode bool) *types.StreamDict {
	var sd *types.StreamDict
	if ref, ok := indirect(o); ok {
		s, _, err := x.ctx.DereferenceStreamDict(ref)
		if err != nil || s == nil {
			return nil
		}
		sd = s
	} else {
		switch v := o.(type) {
		case types.StreamDict:
			sd = &v
		case *types.StreamDict:
			sd = v
		default:
			return nil
		}
	}
	if decode && sd.Content == nil {
		if err := sd.Decode(); err != nil {
			return nil
		}
	}
	return sd
}

// streamContents concatenates the decoded contents of a stream or an
// array of streams.
func (x objects) streamContents(o types.Object) []byte {
	var parts [][]byte
	switch v := x.resolve(o).(type) {
	case types.Array:
		for _, item := range v {
			if sd := x.stream(item, true); sd != nil {
				parts = append(parts, sd.Content)
			}
		}
	default:
		if sd := x.stream(o, true); sd != nil {
			parts = append(parts, sd.Content)
		}
	}
	return bytes.Join(parts, []byte{'\n'})
}

func (x objects) rect(o types.Object) (Rect, bool) {
	a := x.array(o)
	if len(a) != 4 {
		return Rect{}, false
	}
	var v [4]float64
	for i := range v {
		f, ok := x.number(a[i])
		if !ok {
			return Rect{}, false
		}
		v[i] = f
	}
	return Rect{X0: min(v[0], v[2]), Y0: min(v[1], v[3]), X1: max(v[0], v[2]), Y1: max(v[1], v[3])}, true
}

func (x objects) matrix(o types.Object) (Matrix, bool) {
	a := x.array(o)
	if len(a) != 6 {
		return Identity, false
	}
	var v [6]float64
	for i := range v {
		v[i], _ = x.number(a[i])
	}
	return Matrix{A: v[0], B: v[1], C: v[2], D: v[3], E: v[4], F: v[5]}, true
}

// rawString returns the bytes of a string object with escapes removed
func (x objects) rawString(o types.Object) ([]byte, bool) {
	switch v := x.resolve(o).(type) {
	case types.StringLiteral:
		return unescapeLiteral([]byte(v)), true
	case types.HexLiteral:
		return decodeHex([]byte(v)), true
	case types.Name:
		return []byte(v), true
	}
	return nil, false
}

// text decodes a PDF text string: UTF-16BE with a byte order mark,
// UTF-8 with a byte order mark, otherwise a single byte encoding.
func (x objects) text(o types.Object) string {
	b, ok := x.rawString(o)
	if !ok {
		return ""
	}
	return decodeTextString(b)
}

func decodeTextString(b []byte) string {
	switch {
	case len(b) >= 2 && b[0] == 0xfe && b[1] == 0xff:
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if s, err := dec.Bytes(b); err == nil {
			return string(s)
		}
	case len(b) >= 3 && b[0] == 0xef && b[1] == 0xbb && b[2] == 0xbf:
		if utf8.Valid(b[3:]) {
			return string(b[3:])
		}
	}
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(charmap.Windows1252.DecodeByte(c))
	}
	return sb.String()
}

// unescapeLiteral processes the escape sequences of a literal string
func unescapeLiteral(text []byte) []byte {
	result := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 >= len(text) {
			result = append(result, c)
			continue
		}
		i++
		switch c = text[i]; c {
		case 'n':
			result = append(result, '\n')
		case 'r':
			result = append(result, '\r')
		case 't':
			result = append(result, '\t')
		case 'b':
			result = append(result, '\b')
		case 'f':
			result = append(result, '\f')
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
		case '\n':
			// line continuation
		default:
			if c >= '0' && c <= '7' {
				v := 0
				n := 0
				for n < 3 && i < len(text) && text[i] >= '0' && text[i] <= '7' {
					v = v*8 + int(text[i]-'0')
					i++
					n++
				}
				i--
				result = append(result, byte(v))
			} else {
				result = append(result, c)
			}
		}
	}
	return result
}

// decodeHex decodes hex digits, ignoring whitespace. An odd final digit
// is padded with zero.
func decodeHex(s []byte) []byte {
	clean := make([]byte, 0, len(s)+1)
	for _, b := range s {
		if (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F') {
			clean = append(clean, b)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, len(clean)/2)
	if _, err := hex.Decode(out, clean); err != nil {
		return nil
	}
	return out
}
