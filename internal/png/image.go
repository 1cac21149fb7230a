package png

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/agilira/go-errors"
	"github.com/anthonynsimon/bild/clone"
	"golang.org/x/image/draw"
)

const (
	ErrCodeDecode      = "PNGOPT_DECODE"
	ErrCodeEncode      = "PNGOPT_ENCODE"
	ErrCodeUnsupported = "PNGOPT_UNSUPPORTED"
)

type PngImage struct {
	Img      image.Image
	Bounds   image.Rectangle
	animated bool
}

func Decode(data []byte) (*PngImage, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeDecode, "failed to decode PNG")
	}
	return &PngImage{
		Img:      img,
		Bounds:   img.Bounds(),
		animated: IsAnimated(data),
	}, nil
}

// Paletted reports whether the source is already limited to a colour table.
func (p *PngImage) Paletted() bool {
	_, ok := p.Img.(*image.Paletted)
	return ok
}

// HasAlpha reports whether the decoded colour model carries a transparency
// channel (RGBA, grey+alpha or truecolour with tRNS all decode to NRGBA).
func (p *PngImage) HasAlpha() bool {
	switch p.Img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	}
	return false
}

func (p *PngImage) Animated() bool {
	return p.animated
}

// EncodeLossless re-encodes the pixels unchanged at maximum compression.
func (p *PngImage) EncodeLossless() ([]byte, error) {
	data, err := encode(p.Img)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeEncode, "failed to encode lossless PNG")
	}
	return data, nil
}

// EncodeQuantized reduces the image to at most colors palette entries with
// Floyd-Steinberg dithering. Sources with an alpha channel go through the
// alpha-aware octree quantizer, all others through median cut.
func (p *PngImage) EncodeQuantized(colors int) ([]byte, error) {
	if p.Paletted() {
		return nil, errors.New(ErrCodeUnsupported, "image is already paletted")
	}
	if colors < 2 || colors > 256 {
		return nil, errors.New(ErrCodeUnsupported, "palette size out of range")
	}

	var src image.Image
	var quantizer draw.Quantizer
	if p.HasAlpha() {
		nrgba := image.NewNRGBA(p.Bounds)
		draw.Draw(nrgba, p.Bounds, p.Img, p.Bounds.Min, draw.Src)
		src = nrgba
		quantizer = OctreeQuantizer{}
	} else {
		src = clone.AsShallowRGBA(p.Img)
		quantizer = MedianCutQuantizer{}
	}

	palette := quantizer.Quantize(make(color.Palette, 0, colors), src)
	if len(palette) == 0 {
		return nil, errors.New(ErrCodeEncode, "quantizer produced an empty palette")
	}

	paletted := image.NewPaletted(p.Bounds, palette)
	draw.FloydSteinberg.Draw(paletted, p.Bounds, src, p.Bounds.Min)

	data, err := encode(paletted)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeEncode, "failed to encode quantized PNG")
	}
	return data, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
