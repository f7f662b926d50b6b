package ai

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPx bounds the longest edge of images sent to the model.
const DefaultMaxPx = 2000

// LoadImage reads a page render or a solution photo, applies its EXIF
// orientation, downscales it to maxPx on the longest edge and re-encodes it as PNG.
func LoadImage(path string, maxPx int) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	im, err := ReadImage(f, maxPx)
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return im, nil
}

func ReadImage(r io.Reader, maxPx int) (Image, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}
	src = downscale(src, maxPx)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return Image{}, fmt.Errorf("encode png: %w", err)
	}
	return Image{MIMEType: "image/png", Data: buf.Bytes()}, nil
}

func downscale(src image.Image, maxPx int) image.Image {
	if maxPx <= 0 {
		maxPx = DefaultMaxPx
	}
	b := src.Bounds()
	if b.Dx() <= maxPx && b.Dy() <= maxPx {
		return src
	}
	return imaging.Fit(src, maxPx, maxPx, imaging.Lanczos)
}
