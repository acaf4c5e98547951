// Package imagevec turns images into fixed-length grayscale vectors suitable
// for indexing.
package imagevec

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Size is the side length images are scaled to by FromImage.
const Size = 64

// Dim is the length of vectors produced by FromImage.
const Dim = Size * Size

// FromImage scales img to Size x Size and returns its luminance in row-major
// order, each value in [0, 1].
func FromImage(img image.Image) []float32 {
	return FromImageSize(img, Size)
}

// FromImageSize is FromImage with a custom side length.
func FromImageSize(img image.Image, size int) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	vec := make([]float32, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := dst.PixOffset(x, y)
			r := float64(dst.Pix[off])
			g := float64(dst.Pix[off+1])
			b := float64(dst.Pix[off+2])
			vec[y*size+x] = float32(0.299*r+0.587*g+0.114*b) / 255
		}
	}
	return vec
}

// Decode reads a JPEG, PNG, BMP or WebP image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Load decodes the image file at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
