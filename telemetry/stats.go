package telemetry

import (
	"log/slog"
	"math"
	"sort"
)

// RunStats is one rendered stamp and, when a reference was given, its score.
type RunStats struct {
	Run      int     `csv:"run"`
	Diameter float64 `csv:"diameter"`
	Pressure float64 `csv:"pressure"`
	Stamps   int     `csv:"stamps"`

	// Noise modulation
	NoiseStrength float64 `csv:"noise_strength"`
	ApplyMode     string  `csv:"apply_mode"`
	KMeanNorm     float64 `csv:"k_mean_norm"`

	// Footprint alpha distribution
	Pixels     int     `csv:"pixels"`
	BelowFloor bool    `csv:"below_floor"`
	AlphaMean  float64 `csv:"alpha_mean"`
	AlphaStd   float64 `csv:"alpha_std"`
	AlphaP10   float64 `csv:"alpha_p10"`
	AlphaP50   float64 `csv:"alpha_p50"`
	AlphaP90   float64 `csv:"alpha_p90"`

	// Score against the reference radial table
	Scored     bool    `csv:"scored"`
	MeanMAE    float64 `csv:"mean_mae"`
	MeanRMSE   float64 `csv:"mean_rmse"`
	StddevMAE  float64 `csv:"stddev_mae"`
	StddevRMSE float64 `csv:"stddev_rmse"`
}

// Summary describes a distribution of values.
type Summary struct {
	Mean float64
	Std  float64
	P10  float64
	P50  float64
	P90  float64
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Median returns the median of values without modifying them.
func Median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Percentile(sorted, 0.5)
}

// Summarize calculates mean, population std and percentiles.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sqDiffSum float64
	for _, v := range values {
		d := v - mean
		sqDiffSum += d * d
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return Summary{
		Mean: mean,
		Std:  math.Sqrt(sqDiffSum / float64(n)),
		P10:  Percentile(sorted, 0.10),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
	}
}

// SetAlpha fills the alpha distribution fields.
func (s *RunStats) SetAlpha(sum Summary) {
	s.AlphaMean = sum.Mean
	s.AlphaStd = sum.Std
	s.AlphaP10 = sum.P10
	s.AlphaP50 = sum.P50
	s.AlphaP90 = sum.P90
}

// LogValue implements slog.LogValuer for structured logging.
func (s RunStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("run", s.Run),
		slog.Float64("diameter", s.Diameter),
		slog.Float64("pressure", s.Pressure),
		slog.Int("stamps", s.Stamps),
		slog.Int("pixels", s.Pixels),
		slog.Bool("below_floor", s.BelowFloor),
		slog.Float64("alpha_mean", s.AlphaMean),
		slog.Float64("alpha_p50", s.AlphaP50),
	}
	if s.NoiseStrength > 0 {
		attrs = append(attrs,
			slog.Float64("noise_strength", s.NoiseStrength),
			slog.String("apply_mode", s.ApplyMode),
			slog.Float64("k_mean_norm", s.KMeanNorm),
		)
	}
	if s.Scored {
		attrs = append(attrs,
			slog.Float64("mean_mae", s.MeanMAE),
			slog.Float64("mean_rmse", s.MeanRMSE),
			slog.Float64("stddev_mae", s.StddevMAE),
			slog.Float64("stddev_rmse", s.StddevRMSE),
		)
	}
	return slog.GroupValue(attrs...)
}
