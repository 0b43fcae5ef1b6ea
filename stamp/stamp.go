// Package stamp composites a pressure-sensitive pencil stamp onto a square
// canvas.
//
// Render evaluates one stamp centered on the canvas: the falloff profile
// scaled by pressure, optionally modulated by a paper noise field, then
// repeated N times with the closed-form over-compositing law
//
//	out = 1 - (1 - a)^N
//
// Every call allocates its own output buffers. Profiles, maps and fields
// passed in are only read, so renders may run concurrently.
package stamp

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/pthm-cable/graphite/falloff"
	"github.com/pthm-cable/graphite/paper"
)

// Noise multiplier bounds.
const (
	maxZ = 3.0
	minK = 0.5
	maxK = 1.5
)

// ApplyMode selects what the noise multiplier scales.
type ApplyMode int

const (
	// ApplyAlpha scales the per-stamp alpha before compositing.
	ApplyAlpha ApplyMode = iota
	// ApplyCount scales the effective repeat count.
	ApplyCount
)

// ParseApplyMode parses "alpha" or "count".
func ParseApplyMode(s string) (ApplyMode, error) {
	switch strings.ToLower(s) {
	case "", "alpha":
		return ApplyAlpha, nil
	case "count", "n":
		return ApplyCount, nil
	}
	return 0, fmt.Errorf("stamp: unknown apply mode %q", s)
}

func (m ApplyMode) String() string {
	switch m {
	case ApplyAlpha:
		return "alpha"
	case ApplyCount:
		return "count"
	}
	return fmt.Sprintf("ApplyMode(%d)", int(m))
}

// Noise configures paper-texture modulation.
type Noise struct {
	Field    *paper.Field
	Strength float64 // [0,1]
	Gain     float64

	// Canvas pixel (x, y) samples the field at ((x+OffsetX)/Scale, (y+OffsetY)/Scale).
	Scale   float64
	OffsetX float64
	OffsetY float64

	LowFreqScale float64
	LowFreqMix   float64

	Mode ApplyMode
}

// Request describes one stamp render.
type Request struct {
	CanvasSize int
	Diameter   float64
	Pressure   float64
	Stamps     int

	// Profile is evaluated at each pixel's normalized radius. Attenuation,
	// when set, replaces it with a precomputed per-pixel map.
	Profile     *falloff.Profile
	Attenuation *falloff.Map

	Noise *Noise      // nil disables modulation
	Floor *FloorTable // nil uses DefaultFloor
}

// Result is a rendered stamp.
type Result struct {
	Size       int
	Alpha      []float64 // unquantized, row-major
	Footprint  []bool    // pixels within the stamp radius
	Pixels     int       // footprint pixel count
	Floor      float64
	BelowFloor bool    // pressure did not clear the floor; Alpha is all zero
	KMeanNorm  float64 // mean noise multiplier before renormalization; 1 without noise
}

// Render composites the stamp described by req.
func Render(req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	size := req.CanvasSize
	floor := DefaultFloor()
	if req.Floor != nil {
		floor = *req.Floor
	}

	res := &Result{
		Size:      size,
		Alpha:     make([]float64, size*size),
		Footprint: make([]bool, size*size),
		Floor:     floor.At(req.Diameter),
		KMeanNorm: 1,
	}

	// Footprint pixels and their falloff, in row-major order.
	c := falloff.Center(size)
	radius := req.Diameter / 2
	idx := make([]int, 0, int(math.Pi*radius*radius)+1)
	atten := make([]float64, 0, cap(idx))
	for y := 0; y < size; y++ {
		dy := float64(y) - c
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)-c, dy)
			if d > radius {
				continue
			}
			i := y*size + x
			res.Footprint[i] = true
			idx = append(idx, i)
			if req.Attenuation != nil {
				atten = append(atten, req.Attenuation.Values[i])
			} else {
				atten = append(atten, req.Profile.At(d/radius))
			}
		}
	}
	res.Pixels = len(idx)

	if req.Pressure <= res.Floor {
		res.BelowFloor = true
		return res, nil
	}

	var ks []float64
	if req.Noise != nil && len(idx) > 0 {
		ks, res.KMeanNorm = multipliers(req.Noise, idx, size)
	}

	n := float64(req.Stamps)
	for j, i := range idx {
		a := atten[j] * req.Pressure
		nEff := n
		if ks != nil {
			k := ks[j] / res.KMeanNorm
			switch req.Noise.Mode {
			case ApplyCount:
				nEff *= k
			default:
				a *= k
			}
		}
		res.Alpha[i] = Composite(a, nEff)
	}
	return res, nil
}

// multipliers is the first noise pass: it samples k for every footprint
// pixel and returns them with their population mean.
func multipliers(nz *Noise, idx []int, size int) ([]float64, float64) {
	ks := make([]float64, len(idx))
	var sum float64
	for j, i := range idx {
		x := float64(i % size)
		y := float64(i / size)
		v := nz.Field.SampleMixed((x+nz.OffsetX)/nz.Scale, (y+nz.OffsetY)/nz.Scale, nz.LowFreqScale, nz.LowFreqMix)
		z := clamp(nz.Field.ZScore(v), -maxZ, maxZ)
		k := clamp(1+nz.Strength*nz.Gain*z, minK, maxK)
		ks[j] = k
		sum += k
	}
	mean := sum / float64(len(ks))
	if mean <= 0 {
		mean = 1
	}
	return ks, mean
}

// Composite returns the alpha of n identical stamps of alpha a stacked with
// over-compositing. n may be fractional.
func Composite(a, n float64) float64 {
	a = clamp(a, 0, 1)
	if n == 1 {
		return a
	}
	if n <= 0 {
		return 0
	}
	return 1 - math.Pow(1-a, n)
}

// Over composites one stamp of alpha a over an existing alpha dst.
func Over(dst, a float64) float64 {
	return 1 - (1-dst)*(1-clamp(a, 0, 1))
}

func (r Request) validate() error {
	if r.CanvasSize <= 0 {
		return invalid("canvas size", r.CanvasSize, "must be positive")
	}
	if !(r.Diameter > 0) || math.IsInf(r.Diameter, 0) {
		return invalid("diameter", r.Diameter, "must be positive")
	}
	if r.Stamps < 1 {
		return invalid("stamp count", r.Stamps, "must be at least 1")
	}
	if !(r.Pressure >= 0 && r.Pressure <= 1) {
		return invalid("pressure", r.Pressure, "must be within [0,1]")
	}
	if r.Attenuation != nil {
		want := r.CanvasSize * r.CanvasSize
		if r.Attenuation.Size != r.CanvasSize || len(r.Attenuation.Values) != want {
			return invalid("attenuation", len(r.Attenuation.Values), fmt.Sprintf("want %d values for a %dpx canvas", want, r.CanvasSize))
		}
	} else if r.Profile == nil {
		return invalid("falloff", nil, "a profile or attenuation map is required")
	}
	if nz := r.Noise; nz != nil {
		if nz.Field == nil {
			return invalid("noise field", nil, "required when noise is enabled")
		}
		if !(nz.Scale > 0) {
			return invalid("noise scale", nz.Scale, "must be positive")
		}
		if !(nz.Strength >= 0 && nz.Strength <= 1) {
			return invalid("noise strength", nz.Strength, "must be within [0,1]")
		}
		if nz.Mode != ApplyAlpha && nz.Mode != ApplyCount {
			return invalid("apply mode", nz.Mode, "must be alpha or count")
		}
	}
	return nil
}

// Quantized returns Alpha rounded to 8-bit steps.
func (r *Result) Quantized() []float64 {
	out := make([]float64, len(r.Alpha))
	for i, a := range r.Alpha {
		out[i] = math.Round(clamp(a, 0, 1)*255) / 255
	}
	return out
}

// Bytes returns Alpha as 8-bit values.
func (r *Result) Bytes() []uint8 {
	out := make([]uint8, len(r.Alpha))
	for i, a := range r.Alpha {
		out[i] = uint8(math.Round(clamp(a, 0, 1) * 255))
	}
	return out
}

// Mean returns the mean alpha over the footprint.
func (r *Result) Mean() float64 {
	if r.Pixels == 0 {
		return 0
	}
	var sum float64
	for i, in := range r.Footprint {
		if in {
			sum += r.Alpha[i]
		}
	}
	return sum / float64(r.Pixels)
}

// LogValue implements slog.LogValuer.
func (r *Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("size", r.Size),
		slog.Int("pixels", r.Pixels),
		slog.Float64("floor", r.Floor),
		slog.Bool("below_floor", r.BelowFloor),
		slog.Float64("k_mean_norm", r.KMeanNorm),
		slog.Float64("mean_alpha", r.Mean()),
	)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
