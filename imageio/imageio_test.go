package imageio

import (
	"math"
	"path/filepath"
	"testing"
)

func TestAlphaPNGRoundTrip(t *testing.T) {
	alpha := []float64{
		0, 0.25, 0.5,
		0.75, 1, 1.5,
	}
	path := filepath.Join(t.TempDir(), "dot.png")
	if err := EncodePNG(path, AlphaImage(alpha, 3, 2)); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, err := Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got, w, h := Alpha(img)
	if w != 3 || h != 2 {
		t.Fatalf("size = %dx%d, want 3x2", w, h)
	}
	for i, a := range alpha {
		want := math.Min(a, 1)
		if math.Abs(got[i]-want) > 1.0/255 {
			t.Errorf("alpha[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestFieldImageMarksInvalidTransparent(t *testing.T) {
	img := FieldImage([]float64{0.5, 0.5}, []bool{true, false}, 2, 1)
	if a := img.NRGBAAt(0, 0).A; a != 0xff {
		t.Errorf("valid alpha = %d, want 255", a)
	}
	if c := img.NRGBAAt(1, 0); c.A != 0 {
		t.Errorf("invalid texel = %v, want transparent", c)
	}
	if g := img.NRGBAAt(0, 0).R; g != 128 {
		t.Errorf("gray = %d, want 128", g)
	}
}

func TestRescale(t *testing.T) {
	src := AlphaImage(make([]float64, 40*40), 40, 40)
	dst := Rescale(src, 21, 21)
	if b := dst.Bounds(); b.Dx() != 21 || b.Dy() != 21 {
		t.Errorf("bounds = %v, want 21x21", b)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	if _, err := Decode(filepath.Join(t.TempDir(), "none.png")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestCropCenter(t *testing.T) {
	alpha := make([]float64, 25)
	alpha[12] = 1 // center of 5x5
	src := AlphaImage(alpha, 5, 5)

	small := CropCenter(src, 3)
	if got := small.NRGBAAt(1, 1).A; got != 0xff {
		t.Errorf("cropped center alpha = %d, want 255", got)
	}

	// Growing pads with transparent pixels and keeps the dot centered.
	big := CropCenter(src, 7)
	if got := big.NRGBAAt(3, 3).A; got != 0xff {
		t.Errorf("padded center alpha = %d, want 255", got)
	}
	if got := big.NRGBAAt(0, 0).A; got != 0 {
		t.Errorf("padding alpha = %d, want 0", got)
	}
}
