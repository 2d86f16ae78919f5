package engine

import (
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// maxFormDepth bounds the nesting of form XObjects
const maxFormDepth = 12

// textState represents the PDF text state
type textState struct {
	font      *pdfFont
	size      float64
	charSpace float64
	wordSpace float64
	scale     float64 // horizontal scaling, 1 = 100%
	leading   float64
	rise      float64
	mode      int
}

// graphicsState represents the PDF graphics state
type graphicsState struct {
	ctm         Matrix
	fill        Color
	stroke      Color
	fillSpace   int // components of the fill color space, 0 for patterns
	strokeSpace int
	fillAlpha   float64
	strokeAlpha float64
	line        StrokeState
	text        textState
}

func newGraphicsState(ctm Matrix) graphicsState {
	return graphicsState{
		ctm:         ctm,
		fill:        Black,
		stroke:      Black,
		fillSpace:   1,
		strokeSpace: 1,
		fillAlpha:   1,
		strokeAlpha: 1,
		line:        DefaultStrokeState(),
		text:        textState{scale: 1},
	}
}

// interpreter runs content streams against a device
type interpreter struct {
	doc       *pdfDocument
	x         objects
	dev       Device
	gs        graphicsState
	stack     []graphicsState
	path      Path
	tm, tlm   Matrix
	resources types.Dict
	depth     int
	forms     map[int]bool // form XObjects being run, by object number
	err       error
}

func newInterpreter(doc *pdfDocument, dev Device, ctm Matrix) *interpreter {
	return &interpreter{
		doc:   doc,
		x:     doc.objs,
		dev:   dev,
		gs:    newGraphicsState(ctm),
		tm:    Identity,
		tlm:   Identity,
		forms: map[int]bool{},
	}
}

// run interprets content with the given resources. It stops at the
// first device error.
func (in *interpreter) run(content []byte, resources types.Dict) error {
	saved := in.resources
	in.resources = resources
	defer func() { in.resources = saved }()

	lex := newContentLexer(content)
	var operands []any
	for in.err == nil {
		tok, err := lex.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			in.doc.ctx.Warnf("pdf: content stream: %v", err)
			break
		}
		if tok.op == "" {
			operands = append(operands, tok.operand)
			continue
		}
		in.do(tok.op, operands)
		operands = operands[:0]
	}
	return in.err
}

func (in *interpreter) fail(err error) {
	if err != nil && in.err == nil {
		in.err = err
	}
}

// nums returns the last n operands as numbers
func nums(operands []any, n int) ([]float64, bool) {
	if len(operands) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i, o := range operands[len(operands)-n:] {
		f, ok := o.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func lastName(operands []any) string {
	if len(operands) == 0 {
		return ""
	}
	n, _ := operands[len(operands)-1].(pdfName)
	return string(n)
}

func lastString(operands []any) ([]byte, bool) {
	if len(operands) == 0 {
		return nil, false
	}
	s, ok := operands[len(operands)-1].([]byte)
	return s, ok
}

func toMatrix(v []float64) Matrix {
	return Matrix{A: v[0], B: v[1], C: v[2], D: v[3], E: v[4], F: v[5]}
}

// do processes a PDF operator with its operands
func (in *interpreter) do(op string, operands []any) {
	switch op {
	// Graphics state
	case "q":
		in.stack = append(in.stack, in.gs)
	case "Q":
		if n := len(in.stack); n > 0 {
			in.gs = in.stack[n-1]
			in.stack = in.stack[:n-1]
		}
	case "cm":
		if v, ok := nums(operands, 6); ok {
			in.gs.ctm = toMatrix(v).Multiply(in.gs.ctm)
		}
	case "w":
		if v, ok := nums(operands, 1); ok {
			in.gs.line.LineWidth = v[0]
		}
	case "J":
		if v, ok := nums(operands, 1); ok {
			in.gs.line.LineCap = int(v[0])
		}
	case "j":
		if v, ok := nums(operands, 1); ok {
			in.gs.line.LineJoin = int(v[0])
		}
	case "M":
		if v, ok := nums(operands, 1); ok {
			in.gs.line.MiterLimit = v[0]
		}
	case "d":
		in.setDash(operands)
	case "gs":
		in.setExtGState(lastName(operands))

	// Path construction
	case "m":
		if v, ok := nums(operands, 2); ok {
			in.path.MoveTo(v[0], v[1])
		}
	case "l":
		if v, ok := nums(operands, 2); ok {
			in.path.LineTo(v[0], v[1])
		}
	case "c":
		if v, ok := nums(operands, 6); ok {
			in.path.CurveTo(v[0], v[1], v[2], v[3], v[4], v[5])
		}
	case "v":
		if v, ok := nums(operands, 4); ok {
			cur := in.path.Current()
			in.path.CurveTo(cur.X, cur.Y, v[0], v[1], v[2], v[3])
		}
	case "y":
		if v, ok := nums(operands, 4); ok {
			in.path.CurveTo(v[0], v[1], v[2], v[3], v[2], v[3])
		}
	case "h":
		in.path.Close()
	case "re":
		if v, ok := nums(operands, 4); ok {
			in.path.Rect(v[0], v[1], v[2], v[3])
		}

	// Path painting
	case "S":
		in.paint(false, false, true)
	case "s":
		in.path.Close()
		in.paint(false, false, true)
	case "f", "F":
		in.paint(true, false, false)
	case "f*":
		in.paint(true, true, false)
	case "B":
		in.paint(true, false, true)
	case "B*":
		in.paint(true, true, true)
	case "b":
		in.path.Close()
		in.paint(true, false, true)
	case "b*":
		in.path.Close()
		in.paint(true, true, true)
	case "n":
		in.path = Path{}
	case "W", "W*":
		// clipping is not applied

	// Color
	case "g":
		if v, ok := nums(operands, 1); ok {
			in.gs.fill, in.gs.fillSpace = GrayColor(v[0]), 1
		}
	case "G":
		if v, ok := nums(operands, 1); ok {
			in.gs.stroke, in.gs.strokeSpace = GrayColor(v[0]), 1
		}
	case "rg":
		if v, ok := nums(operands, 3); ok {
			in.gs.fill, in.gs.fillSpace = RGBColor(v[0], v[1], v[2]), 3
		}
	case "RG":
		if v, ok := nums(operands, 3); ok {
			in.gs.stroke, in.gs.strokeSpace = RGBColor(v[0], v[1], v[2]), 3
		}
	case "k":
		if v, ok := nums(operands, 4); ok {
			in.gs.fill, in.gs.fillSpace = CMYKColor(v[0], v[1], v[2], v[3]), 4
		}
	case "K":
		if v, ok := nums(operands, 4); ok {
			in.gs.stroke, in.gs.strokeSpace = CMYKColor(v[0], v[1], v[2], v[3]), 4
		}
	case "cs":
		in.gs.fillSpace = in.colorSpaceComponents(lastName(operands))
		in.gs.fill = Black
	case "CS":
		in.gs.strokeSpace = in.colorSpaceComponents(lastName(operands))
		in.gs.stroke = Black
	case "sc", "scn":
		if c, ok := colorFromOperands(operands, in.gs.fillSpace); ok {
			in.gs.fill = c
		}
	case "SC", "SCN":
		if c, ok := colorFromOperands(operands, in.gs.strokeSpace); ok {
			in.gs.stroke = c
		}

	// Text objects and positioning
	case "BT":
		in.tm, in.tlm = Identity, Identity
	case "ET":
	case "Td":
		if v, ok := nums(operands, 2); ok {
			in.moveText(v[0], v[1])
		}
	case "TD":
		if v, ok := nums(operands, 2); ok {
			in.gs.text.leading = -v[1]
			in.moveText(v[0], v[1])
		}
	case "Tm":
		if v, ok := nums(operands, 6); ok {
			in.tm = toMatrix(v)
			in.tlm = in.tm
		}
	case "T*":
		in.moveText(0, -in.gs.text.leading)

	// Text state
	case "Tc":
		if v, ok := nums(operands, 1); ok {
			in.gs.text.charSpace = v[0]
		}
	case "Tw":
		if v, ok := nums(operands, 1); ok {
			in.gs.text.wordSpace = v[0]
		}
	case "Tz":
		if v, ok := nums(operands, 1); ok {
			in.gs.text.scale = v[0] / 100
		}
	case "TL":
		if v, ok := nums(operands, 1); ok {
			in.gs.text.leading = v[0]
		}
	case "Tf":
		in.setFont(operands)
	case "Tr":
		if v, ok := nums(operands, 1); ok {
			in.gs.text.mode = int(v[0])
		}
	case "Ts":
		if v, ok := nums(operands, 1); ok {
			in.gs.text.rise = v[0]
		}

	// Text showing
	case "Tj":
		if s, ok := lastString(operands); ok {
			in.showText(s)
		}
	case "'":
		in.moveText(0, -in.gs.text.leading)
		if s, ok := lastString(operands); ok {
			in.showText(s)
		}
	case "\"":
		if len(operands) >= 3 {
			if v, ok := nums(operands[:len(operands)-1], 2); ok {
				in.gs.text.wordSpace, in.gs.text.charSpace = v[0], v[1]
			}
		}
		in.moveText(0, -in.gs.text.leading)
		if s, ok := lastString(operands); ok {
			in.showText(s)
		}
	case "TJ":
		if len(operands) > 0 {
			if arr, ok := operands[len(operands)-1].([]any); ok {
				in.showTextArray(arr)
			}
		}

	// XObjects
	case "Do":
		in.doXObject(lastName(operands))
	}
}

func (in *interpreter) setDash(operands []any) {
	if len(operands) < 2 {
		return
	}
	arr, _ := operands[len(operands)-2].([]any)
	phase, _ := operands[len(operands)-1].(float64)
	dash := make([]float64, 0, len(arr))
	for _, v := range arr {
		if f, ok := v.(float64); ok {
			dash = append(dash, f)
		}
	}
	in.gs.line.Dash = dash
	in.gs.line.DashPhase = phase
}

func (in *interpreter) resource(category, name string) types.Object {
	if in.resources == nil || name == "" {
		return nil
	}
	d := in.x.dict(in.resources[category])
	if d == nil {
		return nil
	}
	return d[name]
}

func (in *interpreter) setExtGState(name string) {
	gs := in.x.dict(in.resource("ExtGState", name))
	if gs == nil {
		return
	}
	if v, ok := in.x.number(gs["CA"]); ok {
		in.gs.strokeAlpha = v
	}
	if v, ok := in.x.number(gs["ca"]); ok {
		in.gs.fillAlpha = v
	}
	if v, ok := in.x.number(gs["LW"]); ok {
		in.gs.line.LineWidth = v
	}
}

// colorSpaceComponents returns the number of color components of a color
// space, or 0 for pattern spaces.
func (in *interpreter) colorSpaceComponents(name string) int {
	switch name {
	case "DeviceGray", "G", "CalGray":
		return 1
	case "DeviceRGB", "RGB", "CalRGB":
		return 3
	case "DeviceCMYK", "CMYK":
		return 4
	case "Pattern":
		return 0
	}
	arr := in.x.array(in.resource("ColorSpace", name))
	if len(arr) == 0 {
		if n := in.x.name(in.resource("ColorSpace", name)); n != "" && n != name {
			return in.colorSpaceComponents(n)
		}
		return 1
	}
	switch in.x.name(arr[0]) {
	case "ICCBased":
		if len(arr) > 1 {
			if sd := in.x.stream(arr[1], false); sd != nil {
				return int(in.x.numberOr(sd.Dict["N"], 3))
			}
		}
		return 3
	case "CalRGB", "Lab":
		return 3
	case "Pattern":
		return 0
	case "Separation", "Indexed":
		return -1
	}
	return 1
}

// colorFromOperands converts sc/scn operands. A negative component count
// marks a single tint, which is shown as gray.
func colorFromOperands(operands []any, n int) (Color, bool) {
	switch {
	case n == 0:
		return Color{}, false
	case n < 0:
		v, ok := nums(operands, 1)
		if !ok {
			return Color{}, false
		}
		return GrayColor(1 - v[0]), true
	}
	v, ok := nums(operands, n)
	if !ok {
		return Color{}, false
	}
	switch n {
	case 3:
		return RGBColor(v[0], v[1], v[2]), true
	case 4:
		return CMYKColor(v[0], v[1], v[2], v[3]), true
	}
	return GrayColor(v[0]), true
}

func (in *interpreter) paint(fill, evenOdd, stroke bool) {
	path := in.path
	in.path = Path{}
	if path.IsEmpty() {
		return
	}
	if fill {
		in.fail(in.dev.FillPath(&path, evenOdd, in.gs.ctm, in.gs.fill, in.gs.fillAlpha))
	}
	if stroke {
		in.fail(in.dev.StrokePath(&path, in.gs.line, in.gs.ctm, in.gs.stroke, in.gs.strokeAlpha))
	}
}

func (in *interpreter) moveText(tx, ty float64) {
	in.tlm = Translate(tx, ty).Multiply(in.tlm)
	in.tm = in.tlm
}

func (in *interpreter) setFont(operands []any) {
	if len(operands) < 2 {
		return
	}
	name, _ := operands[len(operands)-2].(pdfName)
	size, _ := operands[len(operands)-1].(float64)
	in.gs.text.size = size
	if o := in.resource("Font", string(name)); o != nil {
		in.gs.text.font = in.doc.loadFont(o)
	} else {
		in.gs.text.font = nil
	}
}

func (in *interpreter) showTextArray(arr []any) {
	ts := &in.gs.text
	for _, el := range arr {
		switch v := el.(type) {
		case []byte:
			in.showText(v)
		case float64:
			in.tm = Translate(-v/1000*ts.size*ts.scale, 0).Multiply(in.tm)
		}
	}
}

// showText emits the glyphs of a string and advances the text matrix.
func (in *interpreter) showText(s []byte) {
	ts := &in.gs.text
	f := ts.font
	if f == nil {
		f = in.doc.defaultFont()
	}

	text := &Text{FontName: f.name, RenderMode: ts.mode}
	for _, c := range f.decode(s) {
		trm := Matrix{A: ts.size * ts.scale, D: ts.size, F: ts.rise}.Multiply(in.tm)
		text.Glyphs = append(text.Glyphs, Glyph{
			Unicode: c.text,
			Code:    int(c.code),
			Trm:     trm,
			Advance: c.width,
		})
		tx := c.width*ts.size + ts.charSpace
		if f.codeLen == 1 && c.code == ' ' {
			tx += ts.wordSpace
		}
		in.tm = Translate(tx*ts.scale, 0).Multiply(in.tm)
	}
	if len(text.Glyphs) == 0 {
		return
	}

	color, alpha := in.gs.fill, in.gs.fillAlpha
	if ts.mode == 1 || ts.mode == 5 {
		color, alpha = in.gs.stroke, in.gs.strokeAlpha
	}
	in.fail(in.dev.FillText(text, in.gs.ctm, color, alpha))
}

func (in *interpreter) doXObject(name string) {
	o := in.resource("XObject", name)
	if o == nil {
		return
	}
	sd := in.x.stream(o, false)
	if sd == nil {
		return
	}
	switch in.x.name(sd.Dict["Subtype"]) {
	case "Form":
		in.runForm(o)
	case "Image":
		img, err := in.doc.loadImage(o, in.gs.fill)
		if err != nil {
			in.doc.ctx.Warnf("pdf: image %s: %v", name, err)
			return
		}
		ctm := Matrix{A: 1, D: -1, F: 1}.Multiply(in.gs.ctm)
		in.fail(in.dev.FillImage(img, ctm, in.gs.fillAlpha))
	}
}

func (in *interpreter) runForm(o types.Object) {
	num, indirect := objNum(o)
	if in.depth >= maxFormDepth || (indirect && in.forms[num]) {
		in.doc.ctx.Warnf("pdf: form XObject nesting too deep")
		return
	}
	sd := in.x.stream(o, true)
	if sd == nil {
		return
	}

	res := in.x.dict(sd.Dict["Resources"])
	if res == nil {
		res = in.resources
	}
	m, _ := in.x.matrix(sd.Dict["Matrix"])

	savedGS, savedPath := in.gs, in.path
	savedTM, savedTLM := in.tm, in.tlm
	in.gs.ctm = m.Multiply(in.gs.ctm)
	in.path = Path{}
	in.depth++
	if indirect {
		in.forms[num] = true
	}

	in.run(sd.Content, res)

	if indirect {
		delete(in.forms, num)
	}
	in.depth--
	in.gs, in.path = savedGS, savedPath
	in.tm, in.tlm = savedTM, savedTLM
}
