package main

import (
	"github.com/pthm-cable/graphite/config"
	"github.com/pthm-cable/graphite/pipeline"
	"github.com/pthm-cable/graphite/stamp"
)

// applyModeSplit maps the continuous apply_mode coordinate onto the enum.
const applyModeSplit = 0.5

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the noise model parameters, defaulting to the
// values in cfg.
func NewParamVector(cfg *config.Config) *ParamVector {
	pv := &ParamVector{
		Specs: []ParamSpec{
			{Name: "noise_strength", Path: "noise.strength", Min: 0, Max: 1, Default: 0.3},
			{Name: "noise_gain", Path: "noise.gain", Min: 0.25, Max: 4, Default: 1},
			{Name: "low_freq_mix", Path: "noise.low_freq_mix", Min: 0, Max: 1, Default: 0},
			{Name: "low_freq_scale", Path: "noise.low_freq_scale", Min: 1, Max: 16, Default: 4},
			// Below applyModeSplit scales alpha, above it scales the count.
			{Name: "apply_mode", Path: "noise.apply_mode", Min: 0, Max: 1, Default: 0.25},
		},
	}
	if cfg != nil {
		for i, v := range pv.Clamp(pv.ExtractFromConfig(cfg)) {
			pv.Specs[i].Default = v
		}
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// Mode decodes the apply mode coordinate.
func Mode(v float64) stamp.ApplyMode {
	if v >= applyModeSplit {
		return stamp.ApplyCount
	}
	return stamp.ApplyAlpha
}

// ApplyToRender applies parameter values to a render's noise settings.
// Order must match Specs order.
func (pv *ParamVector) ApplyToRender(r *pipeline.Render, values []float64) {
	clamped := pv.Clamp(values)
	r.Noise.Strength = clamped[0]
	r.Noise.Gain = clamped[1]
	r.Noise.LowFreqMix = clamped[2]
	r.Noise.LowFreqScale = clamped[3]
	r.Noise.Mode = Mode(clamped[4])
}

// ApplyToConfig applies parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	cfg.Noise.Enabled = true
	cfg.Noise.Strength = clamped[0]
	cfg.Noise.Gain = clamped[1]
	cfg.Noise.LowFreqMix = clamped[2]
	cfg.Noise.LowFreqScale = clamped[3]
	mode := Mode(clamped[4])
	cfg.Noise.ApplyMode = mode.String()
	cfg.Derived.ApplyMode = mode
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	mode := 0.25
	if cfg.Derived.ApplyMode == stamp.ApplyCount {
		mode = 0.75
	}
	return []float64{
		cfg.Noise.Strength,
		cfg.Noise.Gain,
		cfg.Noise.LowFreqMix,
		cfg.Noise.LowFreqScale,
		mode,
	}
}
