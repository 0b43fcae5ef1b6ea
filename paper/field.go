// Package paper holds the paper-texture noise field that modulates stamp
// opacity.
//
// A Field is a tiled 2D grid of samples in [0,1]. Its summary statistics are
// computed once over valid texels when the field is built, and the field is
// read-only afterwards, so one Field can be shared by concurrent renders.
package paper

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultRingSearch is how many rings EdgeClampNearest searches before
// giving up.
const DefaultRingSearch = 8

// ErrNoValidTexels is returned when every texel of a field is invalid.
var ErrNoValidTexels = errors.New("paper: field has no valid texels")

// Channel selects which image channel a field is read from.
type Channel int

const (
	ChannelLuma Channel = iota
	ChannelRed
	ChannelGreen
	ChannelBlue
	ChannelAlpha
)

// ParseChannel parses "luma", "red", "green", "blue" or "alpha".
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(s) {
	case "", "luma", "gray", "grey":
		return ChannelLuma, nil
	case "red", "r":
		return ChannelRed, nil
	case "green", "g":
		return ChannelGreen, nil
	case "blue", "b":
		return ChannelBlue, nil
	case "alpha", "a":
		return ChannelAlpha, nil
	}
	return 0, fmt.Errorf("paper: unknown channel %q", s)
}

// InvalidMode decides which texels are treated as "no data".
type InvalidMode int

const (
	// InvalidNone treats every texel as valid.
	InvalidNone InvalidMode = iota
	// InvalidLegacy flags texels whose red, green and blue are all zero.
	InvalidLegacy
)

// ParseInvalidMode parses "none" or "legacy".
func ParseInvalidMode(s string) (InvalidMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return InvalidNone, nil
	case "legacy":
		return InvalidLegacy, nil
	}
	return 0, fmt.Errorf("paper: unknown invalid mode %q", s)
}

// EdgePolicy decides what sampling an invalid texel returns.
type EdgePolicy int

const (
	// EdgeNeutral returns 1.0, meaning no attenuation.
	EdgeNeutral EdgePolicy = iota
	// EdgeClampNearest returns the nearest valid texel found by an
	// expanding square ring search, or 1.0 if none is in range.
	EdgeClampNearest
)

// ParseEdgePolicy parses "neutral" or "clamp".
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch strings.ToLower(s) {
	case "", "neutral":
		return EdgeNeutral, nil
	case "clamp", "clamp_nearest", "nearest":
		return EdgeClampNearest, nil
	}
	return 0, fmt.Errorf("paper: unknown edge policy %q", s)
}

// Options configures how a field is read and sampled.
type Options struct {
	Channel    Channel
	Invalid    InvalidMode
	Edge       EdgePolicy
	RingSearch int // 0 = DefaultRingSearch
}

// Stats are computed over valid texels only.
type Stats struct {
	Mean          float64
	StdDev        float64 // population
	Min           float64
	Max           float64
	ValidFraction float64
	Valid         int
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("mean", s.Mean),
		slog.Float64("stddev", s.StdDev),
		slog.Float64("min", s.Min),
		slog.Float64("max", s.Max),
		slog.Float64("valid_fraction", s.ValidFraction),
	)
}

// Field is a tiled scalar noise field.
type Field struct {
	width, height int
	values        []float64
	valid         []bool // nil when every texel is valid
	stats         Stats
	edge          EdgePolicy
	ringSearch    int
}

// Load reads a field from one channel of img.
func Load(img image.Image, opts Options) (*Field, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("paper: empty image %v", b)
	}

	values := make([]float64, w*h)
	var valid []bool
	if opts.Invalid == InvalidLegacy {
		valid = make([]bool, w*h)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			i := y*w + x
			values[i] = channelValue(c, opts.Channel)
			if valid != nil {
				valid[i] = c.R != 0 || c.G != 0 || c.B != 0
			}
		}
	}

	return newField(w, h, values, valid, opts)
}

// FromValues builds a field from raw samples. valid may be nil to mark every
// texel valid. The slices are copied.
func FromValues(width, height int, values []float64, valid []bool, opts Options) (*Field, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("paper: invalid field size %dx%d", width, height)
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("paper: %d values for a %dx%d field", len(values), width, height)
	}
	if valid != nil && len(valid) != len(values) {
		return nil, fmt.Errorf("paper: %d validity flags for %d values", len(valid), len(values))
	}

	v := make([]float64, len(values))
	copy(v, values)
	var ok []bool
	if valid != nil {
		ok = make([]bool, len(valid))
		copy(ok, valid)
	}
	return newField(width, height, v, ok, opts)
}

func newField(w, h int, values []float64, valid []bool, opts Options) (*Field, error) {
	f := &Field{
		width:      w,
		height:     h,
		values:     values,
		valid:      valid,
		edge:       opts.Edge,
		ringSearch: opts.RingSearch,
	}
	if f.ringSearch <= 0 {
		f.ringSearch = DefaultRingSearch
	}

	samples := values
	if valid != nil {
		samples = make([]float64, 0, len(values))
		for i, v := range values {
			if valid[i] {
				samples = append(samples, v)
			}
		}
	}
	if len(samples) == 0 {
		return nil, ErrNoValidTexels
	}

	mean, std := stat.PopMeanStdDev(samples, nil)
	f.stats = Stats{
		Mean:          mean,
		StdDev:        std,
		Min:           floats.Min(samples),
		Max:           floats.Max(samples),
		ValidFraction: float64(len(samples)) / float64(len(values)),
		Valid:         len(samples),
	}
	return f, nil
}

func channelValue(c color.NRGBA64, ch Channel) float64 {
	const full = 0xffff
	switch ch {
	case ChannelRed:
		return float64(c.R) / full
	case ChannelGreen:
		return float64(c.G) / full
	case ChannelBlue:
		return float64(c.B) / full
	case ChannelAlpha:
		return float64(c.A) / full
	default:
		return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / full
	}
}

// Width returns the field width in texels.
func (f *Field) Width() int { return f.width }

// Height returns the field height in texels.
func (f *Field) Height() int { return f.height }

// Stats returns the statistics computed at load time.
func (f *Field) Stats() Stats { return f.stats }

// Values returns a copy of the raw texel values.
func (f *Field) Values() []float64 {
	out := make([]float64, len(f.values))
	copy(out, f.values)
	return out
}

// Valid reports whether texel (ix, iy), wrapped onto the tile, carries data.
func (f *Field) Valid(ix, iy int) bool {
	if f.valid == nil {
		return true
	}
	return f.valid[modInt(iy, f.height)*f.width+modInt(ix, f.width)]
}

// Sample returns the nearest texel to (x, y). Texel i sits at coordinate i,
// the same grid SampleBilinear interpolates over.
func (f *Field) Sample(x, y float64) float64 {
	return f.texel(int(math.Round(x)), int(math.Round(y)))
}

// SampleBilinear interpolates the four texels around (x, y). Each corner is
// wrapped and resolved through the edge policy independently.
func (f *Field) SampleBilinear(x, y float64) float64 {
	fx0 := math.Floor(x)
	fy0 := math.Floor(y)
	tx := x - fx0
	ty := y - fy0
	x0, y0 := int(fx0), int(fy0)

	v00 := f.texel(x0, y0)
	v10 := f.texel(x0+1, y0)
	v01 := f.texel(x0, y0+1)
	v11 := f.texel(x0+1, y0+1)

	top := v00 + (v10-v00)*tx
	bottom := v01 + (v11-v01)*tx
	return top + (bottom-top)*ty
}

// SampleMixed blends the native bilinear sample with a bilinear sample
// taken at (x, y)/lowFreqScale. mix=0 is the native field and mix=1 is the
// low-frequency field.
func (f *Field) SampleMixed(x, y, lowFreqScale, mix float64) float64 {
	if mix <= 0 || lowFreqScale <= 0 {
		return f.SampleBilinear(x, y)
	}
	low := f.SampleBilinear(x/lowFreqScale, y/lowFreqScale)
	if mix >= 1 {
		return low
	}
	native := f.SampleBilinear(x, y)
	return native + (low-native)*mix
}

// ZScore standardizes v with the field's own mean and stddev. A field with
// zero stddev carries no modulation and scores 0.
func (f *Field) ZScore(v float64) float64 {
	if f.stats.StdDev == 0 {
		return 0
	}
	return (v - f.stats.Mean) / f.stats.StdDev
}

func (f *Field) texel(ix, iy int) float64 {
	ix = modInt(ix, f.width)
	iy = modInt(iy, f.height)
	i := iy*f.width + ix
	if f.valid == nil || f.valid[i] {
		return f.values[i]
	}
	if f.edge == EdgeClampNearest {
		if v, ok := f.nearestValid(ix, iy); ok {
			return v
		}
	}
	return 1
}

// nearestValid walks square rings of growing radius around (ix, iy) and
// returns the first valid texel found.
func (f *Field) nearestValid(ix, iy int) (float64, bool) {
	for ring := 1; ring <= f.ringSearch; ring++ {
		for dy := -ring; dy <= ring; dy++ {
			step := 1
			if dy != -ring && dy != ring {
				step = 2 * ring // interior rows only touch the two side columns
			}
			for dx := -ring; dx <= ring; dx += step {
				jx := modInt(ix+dx, f.width)
				jy := modInt(iy+dy, f.height)
				j := jy*f.width + jx
				if f.valid[j] {
					return f.values[j], true
				}
			}
		}
	}
	return 0, false
}

// modInt is floored modulo, so negative coordinates wrap onto the tile.
func modInt(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
