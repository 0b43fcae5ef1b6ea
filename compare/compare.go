// Package compare scores a simulated radial profile against a reference.
package compare

import (
	"errors"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/graphite/table"
)

var (
	// ErrNoOverlap is returned when either sequence is empty.
	ErrNoOverlap = errors.New("compare: profiles do not overlap")
	// ErrMissingChannels is returned by CompareChannels when a side lacks
	// a mean or stddev sequence.
	ErrMissingChannels = errors.New("compare: profile lacks a mean/stddev column pair")
)

// Metrics is the divergence of two sequences over their common prefix.
type Metrics struct {
	MAE  float64
	RMSE float64
	N    int // compared samples
}

// LogValue implements slog.LogValuer.
func (m Metrics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("mae", m.MAE),
		slog.Float64("rmse", m.RMSE),
		slog.Int("n", m.N),
	)
}

// Compare returns MAE and RMSE over the shorter of the two radius-indexed
// sequences. The longer one is truncated, never padded.
func Compare(a, b []float64) (Metrics, error) {
	n := min(len(a), len(b))
	if n == 0 {
		return Metrics{}, ErrNoOverlap
	}
	a, b = a[:n], b[:n]
	return Metrics{
		MAE:  floats.Distance(a, b, 1) / float64(n),
		RMSE: floats.Distance(a, b, 2) / math.Sqrt(float64(n)),
		N:    n,
	}, nil
}

// Channels holds dense mean and stddev sequences indexed by integer radius.
// Stddev is nil when the source had no stddev column.
type Channels struct {
	Mean   []float64
	Stddev []float64
}

// ChannelMetrics holds per-channel divergence.
type ChannelMetrics struct {
	Mean   Metrics
	Stddev Metrics
}

// LogValue implements slog.LogValuer.
func (c ChannelMetrics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("mean", c.Mean),
		slog.Any("stddev", c.Stddev),
	)
}

// CompareChannels compares the mean and stddev sequences independently.
func CompareChannels(a, b Channels) (ChannelMetrics, error) {
	if len(a.Mean) == 0 || len(a.Stddev) == 0 || len(b.Mean) == 0 || len(b.Stddev) == 0 {
		return ChannelMetrics{}, ErrMissingChannels
	}
	mean, err := Compare(a.Mean, b.Mean)
	if err != nil {
		return ChannelMetrics{}, err
	}
	std, err := Compare(a.Stddev, b.Stddev)
	if err != nil {
		return ChannelMetrics{}, err
	}
	return ChannelMetrics{Mean: mean, Stddev: std}, nil
}

// ChannelsFromTable builds dense channels from a parsed radial table.
func ChannelsFromTable(t *table.Table) Channels {
	return ChannelsFromRows(t.Rows, t.HasStddev)
}

// ChannelsFromRows builds dense sequences indexed by rounded radius from
// rows sorted by radius. Radii missing between rows are linearly
// interpolated; radii before the first row take its value.
func ChannelsFromRows(rows []table.Row, withStddev bool) Channels {
	if len(rows) == 0 {
		return Channels{}
	}
	mean := dense(rows, func(r table.Row) float64 { return r.Mean })
	c := Channels{Mean: mean}
	if withStddev {
		c.Stddev = dense(rows, func(r table.Row) float64 { return r.Stddev })
	}
	return c
}

func dense(rows []table.Row, value func(table.Row) float64) []float64 {
	last := int(math.Round(rows[len(rows)-1].R))
	if last < 0 {
		return nil
	}
	out := make([]float64, last+1)

	prevR, prevV := -1, 0.0
	for _, row := range rows {
		r := int(math.Round(row.R))
		if r < 0 || r <= prevR {
			continue
		}
		v := value(row)
		if prevR < 0 {
			for i := 0; i <= r; i++ {
				out[i] = v
			}
		} else {
			for i := prevR + 1; i <= r; i++ {
				t := float64(i-prevR) / float64(r-prevR)
				out[i] = prevV + (v-prevV)*t
			}
		}
		prevR, prevV = r, v
	}
	return out
}
