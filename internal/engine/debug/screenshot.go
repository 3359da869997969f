// Package debug provides developer tooling around the renderer.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// ScreenshotCapture writes frames to timestamped PNG files.
type ScreenshotCapture struct {
	outputDir string
	prefix    string
	now       func() time.Time
}

// NewScreenshotCapture creates a capture writing prefix_<timestamp>.png files
// into outputDir.
func NewScreenshotCapture(outputDir, prefix string) *ScreenshotCapture {
	return &ScreenshotCapture{
		outputDir: outputDir,
		prefix:    prefix,
		now:       time.Now,
	}
}

// FromBGRA converts tightly packed BGRA8 rows into an image. GL readbacks
// start with the bottom row, so bottomUp flips them.
func FromBGRA(pixels []byte, extent gpu.Extent2D, bottomUp bool) (*image.RGBA, error) {
	w, h := extent.Width, extent.Height
	if len(pixels) != w*h*4 {
		return nil, fmt.Errorf("pixel data size mismatch: expected %d, got %d", w*h*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rowSize := w * 4
	for y := range h {
		srcY := y
		if bottomUp {
			srcY = h - 1 - y
		}
		src := pixels[srcY*rowSize : (srcY+1)*rowSize]
		dst := img.Pix[y*img.Stride : y*img.Stride+rowSize]
		for x := 0; x < rowSize; x += 4 {
			dst[x+0] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x+0]
			dst[x+3] = 0xff
		}
	}
	return img, nil
}

// Capture encodes img as PNG and returns the file name.
func (sc *ScreenshotCapture) Capture(img image.Image) (string, error) {
	if sc.outputDir != "" {
		if err := os.MkdirAll(sc.outputDir, 0o755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := sc.GenerateFilename()
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}

	if err := png.Encode(file, img); err != nil {
		file.Close()
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return filename, file.Close()
}

// GenerateFilename returns the name the next capture is written to.
func (sc *ScreenshotCapture) GenerateFilename() string {
	timestamp := sc.now().Format("2006-01-02_15-04-05.000")
	filename := fmt.Sprintf("%s_%s.png", sc.prefix, timestamp)
	if sc.outputDir != "" {
		filename = filepath.Join(sc.outputDir, filename)
	}
	return filename
}
