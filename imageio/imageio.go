// Package imageio reads captured dots and paper scans and writes renders.
package imageio

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads an image in any registered format.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// Alpha returns the alpha channel of img in [0,1], row-major.
func Alpha(img image.Image) (values []float64, width, height int) {
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	values = make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			_, _, _, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			values[y*width+x] = float64(a) / 0xffff
		}
	}
	return values, width, height
}

// AlphaImage renders an alpha grid as black ink over transparent paper.
func AlphaImage(alpha []float64, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, a := range alpha {
		img.Pix[i*4+3] = to8(a)
	}
	return img
}

// FieldImage renders a scalar field as opaque gray. Texels with valid[i]
// false are fully transparent. A nil valid slice marks everything valid.
func FieldImage(values []float64, valid []bool, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, v := range values {
		if valid != nil && !valid[i] {
			continue
		}
		g := to8(v)
		img.Pix[i*4+0] = g
		img.Pix[i*4+1] = g
		img.Pix[i*4+2] = g
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// Rescale resamples img onto a width x height grid.
func Rescale(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// CropCenter returns the size x size square centered on img. Parts of the
// square outside img are transparent.
func CropCenter(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	off := image.Pt(b.Min.X+(b.Dx()-size)/2, b.Min.Y+(b.Dy()-size)/2)
	draw.Draw(dst, dst.Bounds(), img, off, draw.Src)
	return dst
}

// EncodePNG writes img to path.
func EncodePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding png: %w", err)
	}
	return f.Close()
}

func to8(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(math.Round(v * 0xff))
}
