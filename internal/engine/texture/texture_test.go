package texture

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func makeTGAHeader(imageType byte, w, h, bpp int, topToBottom bool) []byte {
	hdr := make([]byte, tgaHeaderSize)
	hdr[2] = imageType
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = byte(bpp)
	if topToBottom {
		hdr[17] = 0x20
	}
	return hdr
}

func TestDecodeTGAGrayBottomUp(t *testing.T) {
	data := append(makeTGAHeader(TGATypeGray, 2, 2, 8, false), 10, 20, 30, 40)
	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatal(err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("decoded %T, want *image.Gray", img)
	}
	// The first stored row is the bottom one.
	if g.GrayAt(0, 1).Y != 10 || g.GrayAt(1, 0).Y != 40 {
		t.Errorf("pixels = %v", g.Pix)
	}
}

func TestDecodeTGAColorRLE(t *testing.T) {
	data := makeTGAHeader(TGATypeTrueColorRLE, 3, 1, 24, true)
	// A run of two red pixels, then one raw blue pixel (BGR order).
	data = append(data, 0x81, 0, 0, 255, 0x00, 255, 0, 0)
	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatal(err)
	}
	want := []color.NRGBA{{255, 0, 0, 255}, {255, 0, 0, 255}, {0, 0, 255, 255}}
	for x, c := range want {
		if got := img.(*image.NRGBA).NRGBAAt(x, 0); got != c {
			t.Errorf("pixel %d = %v, want %v", x, got, c)
		}
	}
}

func TestDecodeTGAErrors(t *testing.T) {
	tests := map[string][]byte{
		"short":      {0, 0, 2},
		"colormap":   append([]byte{0, 1}, make([]byte, 16)...),
		"bad depth":  makeTGAHeader(TGATypeTrueColor, 1, 1, 16, false),
		"truncated":  append(makeTGAHeader(TGATypeTrueColor, 2, 2, 24, false), 1, 2, 3),
		"rle short":  append(makeTGAHeader(TGATypeGrayRLE, 4, 1, 8, false), 0x81, 7),
		"empty":      makeTGAHeader(TGATypeGray, 0, 4, 8, false),
		"bad type":   makeTGAHeader(1, 1, 1, 8, false),
		"gray depth": makeTGAHeader(TGATypeGray, 1, 1, 24, false),
	}
	for name, data := range tests {
		if _, err := DecodeTGA(data); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func writeImage(t *testing.T, name string, encode func(*os.File) error) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := encode(f); err != nil {
		t.Fatal(err)
	}
	return path
}

func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / (w - 1))})
		}
	}
	return img
}

func TestLoadHeightsPNG(t *testing.T) {
	path := writeImage(t, "h.png", func(f *os.File) error { return png.Encode(f, gradient(8, 4)) })
	heights, w, h, err := LoadHeights(path, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w != 8 || h != 4 || len(heights) != 32 {
		t.Fatalf("size = %dx%d with %d heights", w, h, len(heights))
	}
	if heights[0] != 0 || heights[7] != 1 {
		t.Errorf("row ends = %g, %g, want 0 and 1", heights[0], heights[7])
	}
}

func TestLoadHeightsBMPResized(t *testing.T) {
	path := writeImage(t, "h.bmp", func(f *os.File) error { return bmp.Encode(f, gradient(8, 8)) })
	heights, w, h, err := LoadHeights(path, 16, 4)
	if err != nil {
		t.Fatal(err)
	}
	if w != 16 || h != 4 || len(heights) != 64 {
		t.Fatalf("size = %dx%d with %d heights", w, h, len(heights))
	}
	// The gradient still rises left to right after scaling.
	if heights[0] >= heights[15] {
		t.Errorf("row = %v, want increasing heights", heights[:16])
	}
}

func TestLoadHeightsTGA(t *testing.T) {
	data := append(makeTGAHeader(TGATypeGray, 2, 1, 8, true), 0, 255)
	path := writeImage(t, "h.TGA", func(f *os.File) error { _, err := f.Write(data); return err })
	heights, _, _, err := LoadHeights(path, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(heights) != 2 || heights[0] != 0 || heights[1] != 1 {
		t.Errorf("heights = %v, want [0 1]", heights)
	}
}

func TestDecodeUnknownFormat(t *testing.T) {
	path := writeImage(t, "h.png", func(f *os.File) error { _, err := f.Write([]byte("not an image")); return err })
	if _, err := Decode(path); err == nil {
		t.Fatal("expected a decode error")
	}
}
