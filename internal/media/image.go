package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"beatpost/internal/validation"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

const jpegQuality = 75

// Grayscale decodes a JPEG, PNG or GIF and re-encodes it as a grayscale
// JPEG.
func Grayscale(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, validation.Field("image", "%v", ErrUnsupportedImage)
		}
		return nil, validation.Field("image", "cannot decode image: %v", err)
	}
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gray, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
