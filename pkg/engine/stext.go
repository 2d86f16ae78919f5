package engine

import (
	"image"
	"sort"
	"strings"
	"unicode"
)

// TextChar is a character of a structured text page, in page space.
type TextChar struct {
	Text   string
	Origin Point
	Box    Rect
	Size   float64
}

// TextLine is a run of characters sharing a baseline.
type TextLine struct {
	Chars []TextChar
	Box   Rect
}

// Text returns the characters of the line concatenated.
func (l *TextLine) Text() string {
	var sb strings.Builder
	for _, c := range l.Chars {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// TextBlock is a group of lines separated from its neighbours by
// vertical whitespace.
type TextBlock struct {
	Lines []TextLine
	Box   Rect
}

// TextPage is the structured text of a page: blocks of lines of
// characters, in reading order.
type TextPage struct {
	Blocks []TextBlock
	Bounds Rect
}

// LineCount returns the number of lines over all blocks
func (tp *TextPage) LineCount() int {
	n := 0
	for _, b := range tp.Blocks {
		n += len(b.Lines)
	}
	return n
}

// textOrganizer groups characters into lines and blocks
type textOrganizer struct {
	xTolerance float64 // gap that starts a new word
	yTolerance float64 // baseline difference that starts a new line
	blockGap   float64 // vertical gap, in line heights, that starts a new block
}

func newTextOrganizer() *textOrganizer {
	return &textOrganizer{
		xTolerance: 3.0,
		yTolerance: 3.0,
		blockGap:   1.5,
	}
}

// NewTextPage organizes loose characters into a TextPage. Characters
// are ordered top to bottom, then left to right; a space is inserted
// between characters separated by a visible gap.
func NewTextPage(bounds Rect, chars []TextChar) *TextPage {
	return newTextOrganizer().organize(bounds, chars)
}

func (to *textOrganizer) organize(bounds Rect, chars []TextChar) *TextPage {
	tp := &TextPage{Bounds: bounds}
	if len(chars) == 0 {
		return tp
	}

	sorted := make([]TextChar, len(chars))
	copy(sorted, chars)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Origin.Y != sorted[j].Origin.Y {
			return sorted[i].Origin.Y < sorted[j].Origin.Y
		}
		return sorted[i].Origin.X < sorted[j].Origin.X
	})

	lines := to.groupIntoLines(sorted)

	var block TextBlock
	var lastLine *TextLine
	for i := range lines {
		line := &lines[i]
		if lastLine != nil {
			height := max(lastLine.Box.Height(), line.Box.Height(), 1)
			if line.Box.Y0-lastLine.Box.Y1 > to.blockGap*height {
				tp.Blocks = append(tp.Blocks, block)
				block = TextBlock{}
			}
		}
		if len(block.Lines) == 0 {
			block.Box = line.Box
		} else {
			block.Box = block.Box.Union(line.Box)
		}
		block.Lines = append(block.Lines, *line)
		lastLine = line
	}
	if len(block.Lines) > 0 {
		tp.Blocks = append(tp.Blocks, block)
	}
	return tp
}

// groupIntoLines splits chars, sorted by baseline, into lines. A line
// continues while each baseline is within yTolerance of the previous one,
// so a baseline drifting across a line does not split it.
func (to *textOrganizer) groupIntoLines(chars []TextChar) []TextLine {
	var lines []TextLine
	var current []TextChar
	lastY := chars[0].Origin.Y

	for _, c := range chars {
		if c.Origin.Y-lastY > to.yTolerance {
			lines = append(lines, to.buildLine(current))
			current = nil
		}
		current = append(current, c)
		lastY = c.Origin.Y
	}
	if len(current) > 0 {
		lines = append(lines, to.buildLine(current))
	}
	return lines
}

func (to *textOrganizer) buildLine(chars []TextChar) TextLine {
	sort.SliceStable(chars, func(i, j int) bool {
		return chars[i].Origin.X < chars[j].Origin.X
	})

	line := TextLine{Box: chars[0].Box}
	for i, c := range chars {
		if i > 0 {
			prev := chars[i-1]
			gap := c.Box.X0 - prev.Box.X1
			if gap > to.xTolerance && gap > c.Box.Width()*0.5 && !isSpace(prev.Text) && !isSpace(c.Text) {
				line.Chars = append(line.Chars, TextChar{
					Text:   " ",
					Origin: Point{X: prev.Box.X1, Y: prev.Origin.Y},
					Box:    Rect{X0: prev.Box.X1, Y0: prev.Box.Y0, X1: c.Box.X0, Y1: prev.Box.Y1},
					Size:   prev.Size,
				})
			}
		}
		line.Chars = append(line.Chars, c)
		line.Box = line.Box.Union(c.Box)
	}
	return line
}

func isSpace(s string) bool {
	return s != "" && strings.TrimFunc(s, unicode.IsSpace) == ""
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// TextDevice collects the characters painted on a page.
type TextDevice struct {
	bounds Rect
	chars  []TextChar
	page   *TextPage
}

// NewTextDevice returns a device that records text for a page with the
// given bounds. Invisible text is recorded too.
func NewTextDevice(bounds Rect) *TextDevice {
	return &TextDevice{bounds: bounds}
}

func (d *TextDevice) FillPath(*Path, bool, Matrix, Color, float64) error { return nil }

func (d *TextDevice) StrokePath(*Path, StrokeState, Matrix, Color, float64) error { return nil }

func (d *TextDevice) FillImage(image.Image, Matrix, float64) error { return nil }

func (d *TextDevice) FillText(text *Text, ctm Matrix, _ Color, _ float64) error {
	for _, g := range text.Glyphs {
		if g.Unicode == "" {
			continue
		}
		m := g.Trm.Multiply(ctm)
		adv := g.Advance
		if adv <= 0 {
			adv = 0.5
		}
		d.chars = append(d.chars, TextChar{
			Text:   g.Unicode,
			Origin: m.TransformPoint(Point{}),
			Box:    m.TransformRect(Rect{X0: 0, Y0: -0.2, X1: adv, Y1: 0.8}),
			Size:   m.Expansion(),
		})
	}
	return nil
}

// Close organizes the collected characters
func (d *TextDevice) Close() error {
	if d.page == nil {
		d.page = NewTextPage(d.bounds, d.chars)
	}
	return nil
}

func (d *TextDevice) Drop() {
	d.chars = nil
}

// TextPage returns the organized text. It is only valid after Close.
func (d *TextDevice) TextPage() *TextPage {
	if d.page == nil {
		return &TextPage{Bounds: d.bounds}
	}
	return d.page
}
