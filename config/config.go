// Package config provides configuration loading and access for the brush
// tools.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/graphite/paper"
	"github.com/pthm-cable/graphite/stamp"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all brush model and tool parameters.
type Config struct {
	Render      RenderConfig      `yaml:"render"`
	Falloff     FalloffConfig     `yaml:"falloff"`
	Noise       NoiseConfig       `yaml:"noise"`
	Paper       PaperConfig       `yaml:"paper"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Estimator   EstimatorConfig   `yaml:"estimator"`
	Optimize    OptimizeConfig    `yaml:"optimize"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// RenderConfig describes the stamp to render.
type RenderConfig struct {
	CanvasSize int       `yaml:"canvas_size"`
	Diameter   float64   `yaml:"diameter"`
	Pressure   float64   `yaml:"pressure"`
	Stamps     int       `yaml:"stamps"`
	Quantize   bool      `yaml:"quantize"`    // score the 8-bit render instead of the float one
	Floor      []float64 `yaml:"floor"`       // per-diameter pressure floor override, index = diameter
	FloorLarge float64   `yaml:"floor_large"` // floor past the end of Floor
}

// FalloffConfig selects the radial falloff model.
type FalloffConfig struct {
	Source      string  `yaml:"source"`       // reference, flat, linear or table
	Table       string  `yaml:"table"`        // CSV path when source is table
	RadiusScale float64 `yaml:"radius_scale"` // table radius per unit r01 (0 = infer)
}

// NoiseConfig holds paper-texture modulation parameters.
type NoiseConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Texture      string  `yaml:"texture"` // image path; empty synthesizes from the paper section
	Channel      string  `yaml:"channel"`
	Invalid      string  `yaml:"invalid"`
	Edge         string  `yaml:"edge"`
	RingSearch   int     `yaml:"ring_search"`
	Strength     float64 `yaml:"strength"`
	Gain         float64 `yaml:"gain"`
	Scale        float64 `yaml:"scale"`
	OffsetX      float64 `yaml:"offset_x"`
	OffsetY      float64 `yaml:"offset_y"`
	LowFreqScale float64 `yaml:"low_freq_scale"`
	LowFreqMix   float64 `yaml:"low_freq_mix"`
	ApplyMode    string  `yaml:"apply_mode"` // alpha or count
}

// PaperConfig holds the synthetic paper grain generator parameters.
type PaperConfig struct {
	Seed       int64   `yaml:"seed"`
	Size       int     `yaml:"size"`
	Scale      float64 `yaml:"scale"`
	Octaves    int     `yaml:"octaves"`
	Lacunarity float64 `yaml:"lacunarity"`
	Gain       float64 `yaml:"gain"`
	Contrast   float64 `yaml:"contrast"`
}

// AnalysisConfig holds radial statistics and scoring parameters.
type AnalysisConfig struct {
	BinWidth   float64 `yaml:"bin_width"`
	WithStddev bool    `yaml:"with_stddev"`
	Reference  string  `yaml:"reference"` // radial CSV to score against
}

// CalibrationConfig holds falloff normalization parameters.
type CalibrationConfig struct {
	S0       float64 `yaml:"s0"`
	BinWidth float64 `yaml:"bin_width"`
}

// EstimatorConfig holds noise field estimation parameters.
type EstimatorConfig struct {
	S0      float64 `yaml:"s0"`
	Epsilon float64 `yaml:"epsilon"`
}

// OptimizeConfig holds CMA-ES calibration parameters.
type OptimizeConfig struct {
	MaxEvals     int     `yaml:"max_evals"`
	Population   int     `yaml:"population"` // 0 = CMA-ES default
	Sigma        float64 `yaml:"sigma"`      // initial step in normalized space
	Workers      int     `yaml:"workers"`    // 0 = GOMAXPROCS
	Seeds        int     `yaml:"seeds"`      // noise offsets averaged per evaluation
	StddevWeight float64 `yaml:"stddev_weight"`
}

// TelemetryConfig holds run output parameters.
type TelemetryConfig struct {
	OutputDir  string `yaml:"output_dir"`
	PerfWindow int    `yaml:"perf_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Channel   paper.Channel
	Invalid   paper.InvalidMode
	Edge      paper.EdgePolicy
	ApplyMode stamp.ApplyMode
	Floor     stamp.FloorTable
	Synth     paper.SynthParams
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived resolves enum strings and assembles derived tables.
func (c *Config) computeDerived() error {
	var err error
	if c.Derived.Channel, err = paper.ParseChannel(c.Noise.Channel); err != nil {
		return fmt.Errorf("noise.channel: %w", err)
	}
	if c.Derived.Invalid, err = paper.ParseInvalidMode(c.Noise.Invalid); err != nil {
		return fmt.Errorf("noise.invalid: %w", err)
	}
	if c.Derived.Edge, err = paper.ParseEdgePolicy(c.Noise.Edge); err != nil {
		return fmt.Errorf("noise.edge: %w", err)
	}
	if c.Derived.ApplyMode, err = stamp.ParseApplyMode(c.Noise.ApplyMode); err != nil {
		return fmt.Errorf("noise.apply_mode: %w", err)
	}

	c.Derived.Floor = stamp.DefaultFloor()
	if len(c.Render.Floor) > 0 {
		c.Derived.Floor = stamp.FloorTable{
			Small: append([]float64(nil), c.Render.Floor...),
			Large: c.Render.FloorLarge,
		}
	}

	c.Derived.Synth = paper.SynthParams{
		Seed:       c.Paper.Seed,
		Scale:      c.Paper.Scale,
		Octaves:    c.Paper.Octaves,
		Lacunarity: c.Paper.Lacunarity,
		Gain:       c.Paper.Gain,
		Contrast:   c.Paper.Contrast,
	}
	return nil
}

// PaperOptions returns the noise field load options.
func (c *Config) PaperOptions() paper.Options {
	return paper.Options{
		Channel:    c.Derived.Channel,
		Invalid:    c.Derived.Invalid,
		Edge:       c.Derived.Edge,
		RingSearch: c.Noise.RingSearch,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
