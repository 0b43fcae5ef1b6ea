// Package falloff models the radial attenuation of a single pencil stamp.
//
// A Profile maps a normalized radius r01 (0 at the stamp center, 1 at its
// edge) to an attenuation in [0,1]. Profiles are immutable after
// construction and safe to share between goroutines.
package falloff

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pthm-cable/graphite/table"
)

// PercentScale converts the 0-100 percentage radii of persisted profile
// tables into normalized radii.
const PercentScale = 100.0

// ErrTooFewRows is returned when a table does not carry enough usable rows
// to interpolate between.
var ErrTooFewRows = errors.New("falloff: need at least 2 usable table rows")

// Sample is one (normalized radius, attenuation) pair.
type Sample struct {
	R     float64
	Value float64
}

// Profile is a piecewise-linear radial falloff.
type Profile struct {
	samples []Sample
}

// NewProfile builds a profile from samples. The input is copied and sorted
// by radius; monotonicity is not enforced.
func NewProfile(samples []Sample) (*Profile, error) {
	if len(samples) < 2 {
		return nil, ErrTooFewRows
	}
	s := make([]Sample, len(samples))
	copy(s, samples)
	sort.SliceStable(s, func(i, j int) bool { return s[i].R < s[j].R })
	return &Profile{samples: s}, nil
}

// Flat returns a profile with attenuation 1 everywhere.
func Flat() *Profile {
	return &Profile{samples: []Sample{{0, 1}, {1, 1}}}
}

// Linear returns the ideal-circle ramp 1 - r01, clamped to 0 beyond the edge.
func Linear() *Profile {
	return &Profile{samples: []Sample{{0, 1}, {1, 0}}}
}

// referenceSamples is the built-in pencil falloff measured at the reference
// diameter, in percent of the radius.
var referenceSamples = []Sample{
	{0, 1.00}, {10, 0.99}, {20, 0.97}, {30, 0.93}, {40, 0.87}, {50, 0.79},
	{60, 0.68}, {70, 0.54}, {80, 0.37}, {90, 0.18}, {100, 0.00},
}

// Reference returns the built-in calibrated pencil profile.
func Reference() *Profile {
	s := make([]Sample, len(referenceSamples))
	for i, rs := range referenceSamples {
		s[i] = Sample{R: rs.R / PercentScale, Value: rs.Value}
	}
	return &Profile{samples: s}
}

// FromTable builds a profile from a parsed table, dividing each row radius
// by radiusScale to obtain r01.
func FromTable(t *table.Table, radiusScale float64) (*Profile, error) {
	return FromRows(t.Rows, radiusScale)
}

// FromRows builds a profile from table rows, dividing each row radius by
// radiusScale.
func FromRows(rows []table.Row, radiusScale float64) (*Profile, error) {
	if radiusScale <= 0 {
		return nil, fmt.Errorf("falloff: radius scale must be positive, got %v", radiusScale)
	}
	samples := make([]Sample, len(rows))
	for i, r := range rows {
		samples[i] = Sample{R: r.R / radiusScale, Value: r.Mean}
	}
	return NewProfile(samples)
}

// At evaluates the profile at normalized radius r by linear interpolation
// between the bracketing samples. Outside the sampled domain the first or
// last sample value is returned.
func (p *Profile) At(r float64) float64 {
	s := p.samples
	if r <= s[0].R {
		return s[0].Value
	}
	last := s[len(s)-1]
	if r >= last.R {
		return last.Value
	}

	// First sample strictly beyond r; guaranteed in [1, len-1].
	i := sort.Search(len(s), func(i int) bool { return s[i].R > r })
	lo, hi := s[i-1], s[i]
	span := hi.R - lo.R
	if span <= 0 {
		return hi.Value
	}
	t := (r - lo.R) / span
	return lo.Value + (hi.Value-lo.Value)*t
}

// Len returns the number of samples.
func (p *Profile) Len() int { return len(p.samples) }

// Samples returns a copy of the profile samples.
func (p *Profile) Samples() []Sample {
	out := make([]Sample, len(p.samples))
	copy(out, p.samples)
	return out
}
