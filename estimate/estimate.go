// Package estimate recovers the paper noise field implied by a captured
// dot and a normalized falloff profile.
//
// Each footprint pixel contributes nHat = alpha / falloff(r01). The
// estimates are divided by their median so the field has unit median. The
// median keeps the few outliers near the rim from shifting the level.
package estimate

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/pthm-cable/graphite/falloff"
	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/paper"
	"github.com/pthm-cable/graphite/telemetry"
)

// DefaultEpsilon is the smallest falloff a pixel may be divided by.
const DefaultEpsilon = 1e-3

// ErrNoValidPixels is returned when no footprint pixel yields an estimate.
var ErrNoValidPixels = errors.New("estimate: no valid pixels in footprint")

// Options configures Estimate.
type Options struct {
	S0      float64 // reference diameter the capture is scaled to
	Epsilon float64 // 0 = DefaultEpsilon
	Logger  *slog.Logger
}

// Result is a recovered noise field. Values are unclamped with unit median;
// invalid pixels hold 0.
type Result struct {
	Width  int
	Height int
	Values []float64
	Valid  []bool
	Median float64

	ValidPixels int
	Skipped     int // footprint pixels with zero alpha or falloff below epsilon
}

// Estimate recovers the noise field from a row-major alpha grid whose dot
// is centered and already at the S0 scale.
func Estimate(alpha []float64, width, height int, profile *falloff.Profile, opts Options) (*Result, error) {
	if width <= 0 || height <= 0 || len(alpha) != width*height {
		return nil, fmt.Errorf("estimate: %d samples for a %dx%d grid", len(alpha), width, height)
	}
	if profile == nil {
		return nil, errors.New("estimate: nil falloff profile")
	}
	if !(opts.S0 > 0) {
		return nil, fmt.Errorf("estimate: reference diameter must be positive, got %v", opts.S0)
	}
	eps := opts.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
		Valid:  make([]bool, width*height),
	}

	cx := float64(width-1) / 2
	cy := float64(height-1) / 2
	radius := opts.S0 / 2
	estimates := make([]float64, 0, int(math.Pi*radius*radius)+1)
	for y := 0; y < height; y++ {
		dy := float64(y) - cy
		for x := 0; x < width; x++ {
			d := math.Hypot(float64(x)-cx, dy)
			if d > radius {
				continue
			}
			i := y*width + x
			a := alpha[i]
			if a <= 0 {
				res.Skipped++
				continue
			}
			f := profile.At(d / radius)
			if f < eps {
				res.Skipped++
				continue
			}
			res.Values[i] = a / f
			res.Valid[i] = true
			estimates = append(estimates, res.Values[i])
		}
	}
	if len(estimates) == 0 {
		return nil, ErrNoValidPixels
	}

	res.ValidPixels = len(estimates)
	res.Median = telemetry.Median(estimates)
	for i, ok := range res.Valid {
		if ok {
			res.Values[i] /= res.Median
		}
	}
	logger.Debug("estimated noise field", "result", res)
	return res, nil
}

// EstimateImage runs Estimate on the alpha channel of img.
func EstimateImage(img image.Image, profile *falloff.Profile, opts Options) (*Result, error) {
	alpha, w, h := imageio.Alpha(img)
	return Estimate(alpha, w, h, profile, opts)
}

// Field converts the estimate into a noise field usable by the compositor.
// Invalid pixels stay invalid and are resolved by the field's edge policy.
func (r *Result) Field(opts paper.Options) (*paper.Field, error) {
	return paper.FromValues(r.Width, r.Height, r.Values, r.Valid, opts)
}

// Image renders the estimate for display: values clamped to [0,1], invalid
// pixels fully transparent.
func (r *Result) Image() *image.NRGBA {
	return imageio.FieldImage(r.Values, r.Valid, r.Width, r.Height)
}

// LogValue implements slog.LogValuer.
func (r *Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("width", r.Width),
		slog.Int("height", r.Height),
		slog.Int("valid", r.ValidPixels),
		slog.Int("skipped", r.Skipped),
		slog.Float64("median", r.Median),
	)
}
