package calibrate

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMissingMetadata is returned for capture names without all of the
// S<diameter>, P<pressure> and N<count> tokens.
var ErrMissingMetadata = errors.New("calibrate: capture name lacks S/P/N metadata")

// Capture is the brush state a reference image was captured with.
type Capture struct {
	Diameter float64
	Pressure float64
	Stamps   int
}

var captureExts = map[string]bool{
	".csv": true, ".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// ParseCaptureName reads capture metadata from a file name such as
// "pencil-S120-P0.5-N3.png". Tokens are '-' delimited; the first token of
// each kind that parses wins.
func ParseCaptureName(name string) (Capture, error) {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); captureExts[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
	}

	var (
		c                   Capture
		haveS, haveP, haveN bool
	)
	for _, tok := range strings.Split(base, "-") {
		if len(tok) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(tok[1:], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		switch tok[0] {
		case 'S', 's':
			if !haveS && v > 0 {
				c.Diameter, haveS = v, true
			}
		case 'P', 'p':
			if !haveP && v >= 0 && v <= 1 {
				c.Pressure, haveP = v, true
			}
		case 'N', 'n':
			if !haveN && v >= 1 && v == math.Trunc(v) {
				c.Stamps, haveN = int(v), true
			}
		}
	}
	if !haveS || !haveP || !haveN {
		return Capture{}, fmt.Errorf("%w: %s", ErrMissingMetadata, filepath.Base(name))
	}
	return c, nil
}
