// Package calibrate collapses per-diameter radial captures of the reference
// brush into one diameter-independent falloff table.
package calibrate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/graphite/falloff"
	"github.com/pthm-cable/graphite/radial"
	"github.com/pthm-cable/graphite/table"
)

// DefaultS0 is the reference diameter. With it, normalized radii 0..100
// read as percent of the stamp radius.
const DefaultS0 = 200.0

// ErrNoSamples is returned when nothing survives sample selection.
var ErrNoSamples = errors.New("calibrate: no usable samples")

// Sample is one captured dot with its radial statistics.
type Sample struct {
	Name string
	Capture
	Table *radial.Table
}

// Key identifies the brush state shared by averaged samples.
type Key struct {
	Pressure float64 // rounded to 1e-3
	Stamps   int
}

func keyOf(c Capture) Key {
	return Key{Pressure: math.Round(c.Pressure*1000) / 1000, Stamps: c.Stamps}
}

// Options configures Normalize.
type Options struct {
	S0     float64
	Logger *slog.Logger
}

// Result is a normalized falloff table keyed to S0.
type Result struct {
	S0        float64
	Pressure  float64
	Stamps    int
	Samples   int
	Discarded int
	Rows      []table.Row // R is the integer normalized radius
}

// SelectMajority keeps the samples sharing the most frequent
// (pressure, stamps) pair. Ties go to the pair seen first in name order.
func SelectMajority(samples []Sample) (Key, []Sample) {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	counts := make(map[Key]int)
	var order []Key
	for _, s := range sorted {
		k := keyOf(s.Capture)
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	var best Key
	bestN := 0
	for _, k := range order {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}

	kept := sorted[:0:0]
	for _, s := range sorted {
		if keyOf(s.Capture) == best {
			kept = append(kept, s)
		}
	}
	return best, kept
}

// Normalize rescales every selected sample onto the normalized radius axis
// 0..S0/2 and averages them. A sample contributes at a radius only when
// its native radius lies within its measured profile.
func Normalize(samples []Sample, opts Options) (*Result, error) {
	if opts.S0 == 0 {
		opts.S0 = DefaultS0
	}
	if !(opts.S0 > 0) {
		return nil, fmt.Errorf("calibrate: reference diameter must be positive, got %v", opts.S0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var usable []Sample
	for _, s := range samples {
		if s.Table == nil || s.Diameter <= 0 || s.Table.MaxRadius() < 0 {
			logger.Warn("skipping empty sample", "name", s.Name)
			continue
		}
		usable = append(usable, s)
	}
	if len(usable) == 0 {
		return nil, ErrNoSamples
	}

	key, kept := SelectMajority(usable)
	res := &Result{
		S0:        opts.S0,
		Pressure:  key.Pressure,
		Stamps:    key.Stamps,
		Samples:   len(kept),
		Discarded: len(usable) - len(kept),
	}
	if res.Discarded > 0 {
		logger.Info("majority vote discarded samples",
			"pressure", key.Pressure, "stamps", key.Stamps,
			"kept", len(kept), "discarded", res.Discarded)
	}

	maxNorm := int(math.Floor(opts.S0 / 2))
	vals := make([]float64, 0, len(kept))
	for rn := 0; rn <= maxNorm; rn++ {
		vals = vals[:0]
		for _, s := range kept {
			native := float64(rn) * s.Diameter / opts.S0
			if native > s.Table.MaxRadius() {
				continue
			}
			if v, ok := s.Table.Sample(native); ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			continue
		}
		mean, variance := stat.PopMeanVariance(vals, nil)
		res.Rows = append(res.Rows, table.Row{
			R:      float64(rn),
			Mean:   mean,
			Stddev: math.Sqrt(math.Max(0, variance)),
			Count:  len(vals),
		})
	}
	if len(res.Rows) == 0 {
		return nil, ErrNoSamples
	}
	return res, nil
}

// Meta returns the metadata written above the table.
func (r *Result) Meta() table.Meta {
	return table.Meta{
		{Key: "S0", Value: formatFloat(r.S0)},
		{Key: "P", Value: formatFloat(r.Pressure)},
		{Key: "N", Value: strconv.Itoa(r.Stamps)},
		{Key: "samples", Value: strconv.Itoa(r.Samples)},
	}
}

// WriteCSV writes the metadata line and the normalized rows.
func (r *Result) WriteCSV(w io.Writer) error {
	return table.WriteNormalized(w, r.Meta(), r.Rows)
}

// WriteFile writes the table to path.
func (r *Result) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating normalized table: %w", err)
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Profile returns the table as a falloff profile over r01.
func (r *Result) Profile() (*falloff.Profile, error) {
	return falloff.FromRows(r.Rows, r.S0/2)
}

// LogValue implements slog.LogValuer.
func (r *Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("s0", r.S0),
		slog.Float64("pressure", r.Pressure),
		slog.Int("stamps", r.Stamps),
		slog.Int("samples", r.Samples),
		slog.Int("discarded", r.Discarded),
		slog.Int("rows", len(r.Rows)),
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
