package engine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/ccitt"
)

// maxImagePixels bounds the size of decoded image XObjects
const maxImagePixels = 1 << 26

var errUnsupportedImage = errors.New("unsupported image encoding")

// imageSpace describes how samples map to colors
type imageSpace struct {
	n      int    // components per sample
	lookup []byte // palette of an Indexed space, in base space components
	base   int    // components of the palette entries
}

// loadImage decodes an image XObject. Stencil masks are painted in the
// current fill color and therefore never cached.
func (d *pdfDocument) loadImage(o types.Object, fill Color) (image.Image, error) {
	x := d.objs
	sd := x.stream(o, false)
	if sd == nil {
		return nil, fmt.Errorf("missing image stream")
	}
	mask := x.boolean(sd.Dict["ImageMask"])

	num, indirect := objNum(o)
	key := StoreKey{Owner: d, Kind: "image", ID: num}
	if indirect && !mask {
		if v, ok := d.ctx.StoreGet(key); ok {
			return v.(image.Image), nil
		}
	}

	img, err := d.decodeImage(sd, mask, fill)
	if err != nil {
		return nil, err
	}
	if indirect && !mask {
		d.ctx.StorePut(key, img)
	}
	return img, nil
}

func (d *pdfDocument) filters(dict types.Dict) ([]string, types.Dict) {
	x := d.objs
	var names []string
	switch v := x.resolve(dict["Filter"]).(type) {
	case types.Name:
		names = []string{string(v)}
	case types.Array:
		for _, f := range v {
			names = append(names, x.name(f))
		}
	}
	var parms types.Dict
	switch v := x.resolve(dict["DecodeParms"]).(type) {
	case types.Dict:
		parms = v
	case types.Array:
		if len(v) > 0 {
			parms = x.dict(v[len(v)-1])
		}
	}
	return names, parms
}

func (d *pdfDocument) decodeImage(sd *types.StreamDict, mask bool, fill Color) (image.Image, error) {
	x := d.objs
	w := int(x.numberOr(sd.Dict["Width"], 0))
	h := int(x.numberOr(sd.Dict["Height"], 0))
	if w <= 0 || h <= 0 || w*h > maxImagePixels {
		return nil, fmt.Errorf("image size %dx%d", w, h)
	}

	filters, parms := d.filters(sd.Dict)
	last := ""
	if len(filters) > 0 {
		last = filters[len(filters)-1]
	}

	var data []byte
	bpc := int(x.numberOr(sd.Dict["BitsPerComponent"], 8))
	switch last {
	case "DCTDecode", "DCT":
		if len(filters) > 1 {
			return nil, fmt.Errorf("%w: %v", errUnsupportedImage, filters)
		}
		img, err := jpeg.Decode(bytes.NewReader(sd.Raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode JPEG: %w", err)
		}
		return d.applySoftMask(img, sd), nil
	case "CCITTFaxDecode", "CCF":
		if len(filters) > 1 {
			return nil, fmt.Errorf("%w: %v", errUnsupportedImage, filters)
		}
		raw, err := decodeCCITT(x, sd.Raw, parms, h)
		if err != nil {
			return nil, err
		}
		data, bpc = raw, 1
	case "JPXDecode", "JBIG2Decode":
		return nil, fmt.Errorf("%w: %s", errUnsupportedImage, last)
	default:
		if err := sd.Decode(); err != nil {
			return nil, fmt.Errorf("failed to decode stream: %w", err)
		}
		data = sd.Content
	}

	if mask {
		return stencilImage(data, w, h, x.array(sd.Dict["Decode"]), x, fill), nil
	}
	space := d.imageSpace(sd.Dict["ColorSpace"])
	img, err := sampleImage(data, w, h, bpc, space)
	if err != nil {
		return nil, err
	}
	return d.applySoftMask(img, sd), nil
}

// decodeCCITT decodes fax data into one bit per pixel, 1 meaning white
func decodeCCITT(x objects, raw []byte, parms types.Dict, height int) ([]byte, error) {
	columns := int(x.numberOr(parms["Columns"], 1728))
	rows := int(x.numberOr(parms["Rows"], float64(height)))
	k := x.numberOr(parms["K"], 0)
	blackIs1 := x.boolean(parms["BlackIs1"])

	sf := ccitt.Group3
	if k < 0 {
		sf = ccitt.Group4
	}
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}
	r := ccitt.NewReader(bytes.NewReader(raw), ccitt.MSB, sf, columns, rows, &ccitt.Options{Invert: blackIs1})
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode CCITT data: %w", err)
	}
	return data, nil
}

func (d *pdfDocument) imageSpace(o types.Object) imageSpace {
	x := d.objs
	switch v := x.resolve(o).(type) {
	case types.Name:
		switch v {
		case "DeviceRGB", "CalRGB", "RGB":
			return imageSpace{n: 3}
		case "DeviceCMYK", "CMYK":
			return imageSpace{n: 4}
		}
		return imageSpace{n: 1}
	case types.Array:
		if len(v) == 0 {
			return imageSpace{n: 1}
		}
		switch x.name(v[0]) {
		case "ICCBased":
			if len(v) > 1 {
				if sd := x.stream(v[1], false); sd != nil {
					return imageSpace{n: int(x.numberOr(sd.Dict["N"], 3))}
				}
			}
			return imageSpace{n: 3}
		case "CalRGB", "Lab":
			return imageSpace{n: 3}
		case "Indexed", "I":
			if len(v) < 4 {
				return imageSpace{n: 1}
			}
			base := d.imageSpace(v[1])
			lookup, ok := x.rawString(v[3])
			if !ok {
				if sd := x.stream(v[3], true); sd != nil {
					lookup = sd.Content
				}
			}
			return imageSpace{n: 1, lookup: lookup, base: base.n}
		}
	}
	return imageSpace{n: 1}
}

// sampleImage unpacks raw samples into an image
func sampleImage(data []byte, w, h, bpc int, space imageSpace) (image.Image, error) {
	switch bpc {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: %d bits per component", errUnsupportedImage, bpc)
	}
	n := space.n
	if n <= 0 {
		n = 1
	}
	rowBytes := (w*n*bpc + 7) / 8
	if len(data) < rowBytes*h {
		h = len(data) / rowBytes
		if h == 0 {
			return nil, fmt.Errorf("image data too short")
		}
	}

	maxV := float64(int(1)<<bpc - 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	comps := make([]float64, n)
	for y := 0; y < h; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		for px := 0; px < w; px++ {
			for c := 0; c < n; c++ {
				comps[c] = float64(sampleAt(row, px*n+c, bpc))
			}
			var col Color
			switch {
			case space.lookup != nil:
				col = paletteColor(space, int(comps[0]))
			case n == 3:
				col = RGBColor(comps[0]/maxV, comps[1]/maxV, comps[2]/maxV)
			case n == 4:
				col = CMYKColor(comps[0]/maxV, comps[1]/maxV, comps[2]/maxV, comps[3]/maxV)
			default:
				col = GrayColor(comps[0] / maxV)
			}
			img.SetRGBA(px, y, color.RGBA{R: col.R, G: col.G, B: col.B, A: 0xff})
		}
	}
	return img, nil
}

// sampleAt returns the i-th sample of a row packed at bpc bits
func sampleAt(row []byte, i, bpc int) int {
	if bpc == 8 {
		return int(row[i])
	}
	bit := i * bpc
	b := row[bit/8]
	shift := 8 - bpc - bit%8
	return int(b>>shift) & (1<<bpc - 1)
}

func paletteColor(space imageSpace, index int) Color {
	base := max(space.base, 1)
	off := index * base
	if off+base > len(space.lookup) {
		return Black
	}
	v := space.lookup[off : off+base]
	switch base {
	case 3:
		return Color{R: v[0], G: v[1], B: v[2]}
	case 4:
		return CMYKColor(float64(v[0])/255, float64(v[1])/255, float64(v[2])/255, float64(v[3])/255)
	}
	return Color{R: v[0], G: v[0], B: v[0]}
}

// stencilImage paints the set samples of a 1-bit mask in the fill color.
// With the default decode array a 0 sample is painted.
func stencilImage(data []byte, w, h int, decode types.Array, x objects, fill Color) image.Image {
	paint := 0
	if len(decode) == 2 {
		if v, _ := x.number(decode[0]); v == 1 {
			paint = 1
		}
	}
	rowBytes := (w + 7) / 8
	if len(data) < rowBytes*h {
		h = len(data) / rowBytes
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, max(h, 0)))
	on := color.NRGBA{R: fill.R, G: fill.G, B: fill.B, A: 0xff}
	for y := 0; y < h; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		for px := 0; px < w; px++ {
			if sampleAt(row, px, 1) == paint {
				img.SetNRGBA(px, y, on)
			}
		}
	}
	return img
}

// applySoftMask combines an image with its /SMask as alpha channel
func (d *pdfDocument) applySoftMask(img image.Image, sd *types.StreamDict) image.Image {
	x := d.objs
	ms := x.stream(sd.Dict["SMask"], false)
	if ms == nil {
		return img
	}
	mw := int(x.numberOr(ms.Dict["Width"], 0))
	mh := int(x.numberOr(ms.Dict["Height"], 0))
	if mw <= 0 || mh <= 0 || mw*mh > maxImagePixels {
		return img
	}
	if err := ms.Decode(); err != nil {
		return img
	}
	bpc := int(x.numberOr(ms.Dict["BitsPerComponent"], 8))
	alpha, err := sampleImage(ms.Content, mw, mh, bpc, imageSpace{n: 1})
	if err != nil {
		return img
	}

	b := img.Bounds()
	ab := alpha.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for px := b.Min.X; px < b.Max.X; px++ {
			c := color.NRGBAModel.Convert(img.At(px, y)).(color.NRGBA)
			ax := ab.Min.X + (px-b.Min.X)*ab.Dx()/b.Dx()
			ay := ab.Min.Y + (y-b.Min.Y)*ab.Dy()/b.Dy()
			r, _, _, _ := alpha.At(ax, ay).RGBA()
			c.A = uint8(r >> 8)
			out.SetNRGBA(px, y, c)
		}
	}
	return out
}
