package photos

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

// GenerateThumbnail decodes the image at path and returns a JPEG-encoded
// copy shrunk to fit within maxPx on its longest side, preserving aspect
// ratio. Used to bound the input size of an OCR probe
// (the ocr_preview_max_px config value) before the confidence-boost check in
// ocr.go.
func GenerateThumbnail(path string, maxPx int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("photos: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := decodeImage(f, path)
	if err != nil {
		return nil, fmt.Errorf("photos: decode %s: %w", path, err)
	}

	bounds := img.Bounds()
	width, height := uint(bounds.Dx()), uint(bounds.Dy())
	if int(width) > maxPx || int(height) > maxPx {
		if width > height {
			img = resize.Resize(uint(maxPx), 0, img, resize.Lanczos3)
		} else {
			img = resize.Resize(0, uint(maxPx), img, resize.Lanczos3)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("photos: encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeImage(f *os.File, path string) (image.Image, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err := png.Decode(f)
		return img, "png", err
	default:
		img, err := jpeg.Decode(f)
		return img, "jpeg", err
	}
}
