package debug

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

func TestFromBGRAFlipsAndSwizzles(t *testing.T) {
	// 1x2: bottom row blue, top row red, in BGRA order.
	pixels := []byte{
		255, 0, 0, 0, // bottom: B=255
		0, 0, 255, 0, // top: R=255
	}
	img, err := FromBGRA(pixels, gpu.Extent2D{Width: 1, Height: 2}, true)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("top pixel = %v, want red", got)
	}
	if got := img.RGBAAt(0, 1); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("bottom pixel = %v, want blue", got)
	}

	img, err = FromBGRA(pixels, gpu.Extent2D{Width: 1, Height: 2}, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("unflipped top pixel = %v, want blue", got)
	}
}

func TestFromBGRASizeMismatch(t *testing.T) {
	if _, err := FromBGRA(make([]byte, 7), gpu.Extent2D{Width: 1, Height: 2}, false); err == nil {
		t.Fatal("expected a size mismatch error")
	}
}

func TestCaptureWritesPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	sc := NewScreenshotCapture(dir, "vigil")
	sc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }

	img, err := FromBGRA(make([]byte, 4*4*3), gpu.Extent2D{Width: 4, Height: 3}, true)
	if err != nil {
		t.Fatal(err)
	}
	name, err := sc.Capture(img)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "vigil_2024-05-01_12-30-00.000.png"); name != want {
		t.Errorf("file = %q, want %q", name, want)
	}

	f, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := decoded.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("decoded size = %v, want 4x3", b)
	}
}
