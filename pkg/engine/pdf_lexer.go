package engine

import (
	"bytes"
	"errors"
	"io"
	"strconv"
)

// pdfName is a name operand, without the leading slash
type pdfName string

// contentToken is either an operator or an operand
type contentToken struct {
	op      string
	operand any // float64, pdfName, []byte, []any or nil for dictionaries
}

// contentLexer splits a content stream into operands and operators.
type contentLexer struct {
	data []byte
	pos  int
}

func newContentLexer(data []byte) *contentLexer {
	return &contentLexer{data: data}
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' || b == '[' || b == ']' ||
		b == '{' || b == '}' || b == '/' || b == '%'
}

func (l *contentLexer) skipWhitespace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isWhitespace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

// next returns the next token, or io.EOF at the end of the stream.
func (l *contentLexer) next() (contentToken, error) {
	l.skipWhitespace()
	if l.pos >= len(l.data) {
		return contentToken{}, io.EOF
	}

	c := l.data[l.pos]
	if isRegular(c) && !isNumberStart(c) {
		op := l.readRegular()
		if op == "BI" {
			l.skipInlineImage()
		}
		return contentToken{op: op}, nil
	}
	v, err := l.readObject(0)
	if err != nil {
		return contentToken{}, err
	}
	return contentToken{operand: v}, nil
}

func isRegular(c byte) bool {
	return !isWhitespace(c) && !isDelimiter(c)
}

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func (l *contentLexer) readObject(depth int) (any, error) {
	l.skipWhitespace()
	if l.pos >= len(l.data) {
		return nil, io.ErrUnexpectedEOF
	}
	if depth > 32 {
		return nil, errNesting
	}

	switch c := l.data[l.pos]; {
	case c == '(':
		return l.readString(), nil
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.skipDict()
			return nil, nil
		}
		return l.readHexString(), nil
	case c == '[':
		l.pos++
		var arr []any
		for {
			l.skipWhitespace()
			if l.pos >= len(l.data) {
				return arr, nil
			}
			if l.data[l.pos] == ']' {
				l.pos++
				return arr, nil
			}
			v, err := l.readObject(depth + 1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
	case c == '/':
		l.pos++
		return pdfName(l.readRegular()), nil
	case isNumberStart(c):
		return l.readNumber(), nil
	case isRegular(c):
		// keywords such as true, false and null inside arrays
		kw := l.readRegular()
		switch kw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, nil
	default:
		// stray delimiter
		l.pos++
		return nil, nil
	}
}

var errNesting = errors.New("content stream nesting too deep")

func (l *contentLexer) readRegular() string {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *contentLexer) readNumber() float64 {
	start := l.pos
	l.pos++
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		l.pos++
	}
	f, err := strconv.ParseFloat(string(l.data[start:l.pos]), 64)
	if err != nil {
		return 0
	}
	return f
}

func (l *contentLexer) readString() []byte {
	l.pos++ // (
	start := l.pos
	depth := 1
	escaped := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return unescapeLiteral(l.data[start : l.pos-1])
			}
		}
	}
	return unescapeLiteral(l.data[start:])
}

func (l *contentLexer) readHexString() []byte {
	l.pos++ // <
	end := bytes.IndexByte(l.data[l.pos:], '>')
	if end < 0 {
		s := decodeHex(l.data[l.pos:])
		l.pos = len(l.data)
		return s
	}
	s := decodeHex(l.data[l.pos : l.pos+end])
	l.pos += end + 1
	return s
}

// skipDict skips a dictionary operand, nested dictionaries included
func (l *contentLexer) skipDict() {
	depth := 0
	for l.pos < len(l.data) {
		switch {
		case bytes.HasPrefix(l.data[l.pos:], []byte("<<")):
			depth++
			l.pos += 2
		case bytes.HasPrefix(l.data[l.pos:], []byte(">>")):
			depth--
			l.pos += 2
			if depth == 0 {
				return
			}
		case l.data[l.pos] == '(':
			l.readString()
		default:
			l.pos++
		}
	}
}

// skipInlineImage moves past the data of an inline image, up to and
// including the EI operator.
func (l *contentLexer) skipInlineImage() {
	id := bytes.Index(l.data[l.pos:], []byte("ID"))
	if id < 0 {
		l.pos = len(l.data)
		return
	}
	l.pos += id + 3
	for l.pos < len(l.data) {
		i := bytes.Index(l.data[l.pos:], []byte("EI"))
		if i < 0 {
			l.pos = len(l.data)
			return
		}
		at := l.pos + i
		l.pos = at + 2
		before := at == 0 || isWhitespace(l.data[at-1])
		after := l.pos >= len(l.data) || isWhitespace(l.data[l.pos]) || isDelimiter(l.data[l.pos])
		if before && after {
			return
		}
	}
}
