package texture

import (
	"fmt"
	"image"
	"image/color"
)

// TGA image types.
const (
	TGATypeTrueColor    = 2
	TGATypeGray         = 3
	TGATypeTrueColorRLE = 10
	TGATypeGrayRLE      = 11
)

const tgaHeaderSize = 18

type tgaHeader struct {
	idLength    int
	imageType   byte
	width       int
	height      int
	bpp         int
	topToBottom bool
}

func parseTGAHeader(data []byte) (tgaHeader, error) {
	if len(data) < tgaHeaderSize {
		return tgaHeader{}, fmt.Errorf("TGA data too short")
	}
	h := tgaHeader{
		idLength:    int(data[0]),
		imageType:   data[2],
		width:       int(data[12]) | int(data[13])<<8,
		height:      int(data[14]) | int(data[15])<<8,
		bpp:         int(data[16]),
		topToBottom: data[17]&0x20 != 0,
	}
	if data[1] != 0 {
		return tgaHeader{}, fmt.Errorf("color-mapped TGA not supported")
	}
	switch h.imageType {
	case TGATypeTrueColor, TGATypeTrueColorRLE:
		if h.bpp != 24 && h.bpp != 32 {
			return tgaHeader{}, fmt.Errorf("unsupported true-color TGA bit depth %d", h.bpp)
		}
	case TGATypeGray, TGATypeGrayRLE:
		if h.bpp != 8 {
			return tgaHeader{}, fmt.Errorf("unsupported grayscale TGA bit depth %d", h.bpp)
		}
	default:
		return tgaHeader{}, fmt.Errorf("unsupported TGA type %d", h.imageType)
	}
	if h.width == 0 || h.height == 0 {
		return tgaHeader{}, fmt.Errorf("empty TGA image %dx%d", h.width, h.height)
	}
	return h, nil
}

func (h tgaHeader) gray() bool {
	return h.imageType == TGATypeGray || h.imageType == TGATypeGrayRLE
}

func (h tgaHeader) rle() bool {
	return h.imageType == TGATypeTrueColorRLE || h.imageType == TGATypeGrayRLE
}

// DecodeTGA decodes an uncompressed or RLE compressed true-color or
// grayscale TGA image. Grayscale files decode to *image.Gray, the rest to
// *image.NRGBA.
func DecodeTGA(data []byte) (image.Image, error) {
	h, err := parseTGAHeader(data)
	if err != nil {
		return nil, err
	}
	offset := tgaHeaderSize + h.idLength
	if offset > len(data) {
		return nil, fmt.Errorf("TGA data truncated")
	}

	bpp := h.bpp / 8
	pixels := data[offset:]
	if h.rle() {
		if pixels, err = expandTGARLE(pixels, h.width*h.height, bpp); err != nil {
			return nil, err
		}
	} else if len(pixels) < h.width*h.height*bpp {
		return nil, fmt.Errorf("TGA pixel data truncated")
	}

	rect := image.Rect(0, 0, h.width, h.height)
	var dst interface {
		image.Image
		Set(x, y int, c color.Color)
	}
	if h.gray() {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewNRGBA(rect)
	}

	for y := range h.height {
		// Rows are stored bottom-up unless the descriptor says otherwise.
		destY := y
		if !h.topToBottom {
			destY = h.height - 1 - y
		}
		for x := range h.width {
			p := pixels[(y*h.width+x)*bpp:]
			switch bpp {
			case 1:
				dst.Set(x, destY, color.Gray{Y: p[0]})
			case 3:
				dst.Set(x, destY, color.NRGBA{R: p[2], G: p[1], B: p[0], A: 255})
			case 4:
				dst.Set(x, destY, color.NRGBA{R: p[2], G: p[1], B: p[0], A: p[3]})
			}
		}
	}
	return dst, nil
}

// expandTGARLE expands run-length packets into n raw pixels of bpp bytes.
func expandTGARLE(data []byte, n, bpp int) ([]byte, error) {
	out := make([]byte, 0, n*bpp)
	i := 0
	for len(out) < n*bpp {
		if i >= len(data) {
			return nil, fmt.Errorf("TGA RLE data truncated after %d of %d pixels", len(out)/bpp, n)
		}
		packet := data[i]
		i++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			if i+bpp > len(data) {
				return nil, fmt.Errorf("TGA RLE packet truncated")
			}
			px := data[i : i+bpp]
			i += bpp
			for range count {
				out = append(out, px...)
			}
			continue
		}

		raw := count * bpp
		if i+raw > len(data) {
			return nil, fmt.Errorf("TGA raw packet truncated")
		}
		out = append(out, data[i:i+raw]...)
		i += raw
	}
	// A final run may overshoot the pixel count.
	return out[:n*bpp], nil
}
