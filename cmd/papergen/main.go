// Paper grain generator - writes a tileable synthetic paper texture.
//
// Usage: go run ./cmd/papergen -out paper.png
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/pthm-cable/graphite/config"
	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/paper"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	out := flag.String("out", "paper.png", "Output texture PNG")
	size := flag.Int("size", 0, "Texture side in px (0 = use config)")
	seed := flag.Int64("seed", 0, "Noise seed (0 = use config)")
	scale := flag.Float64("scale", 0, "Base frequency in cycles per tile (0 = use config)")
	octaves := flag.Int("octaves", 0, "FBM octaves (0 = use config)")
	contrast := flag.Float64("contrast", 0, "Contrast exponent (0 = use config)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	side := cfg.Paper.Size
	if *size > 0 {
		side = *size
	}
	params := overrideSynth(cfg.Derived.Synth, *seed, *scale, *octaves, *contrast)

	values, err := paper.GenerateValues(side, params)
	if err != nil {
		slog.Error("failed to generate paper", "error", err)
		os.Exit(1)
	}
	field, err := paper.FromValues(side, side, values, nil, cfg.PaperOptions())
	if err != nil {
		slog.Error("failed to build field", "error", err)
		os.Exit(1)
	}

	if err := imageio.EncodePNG(*out, imageio.FieldImage(values, nil, side, side)); err != nil {
		slog.Error("failed to write texture", "error", err)
		os.Exit(1)
	}
	slog.Info("paper texture written",
		"path", *out,
		"size", side,
		"seed", params.Seed,
		"scale", params.Scale,
		"octaves", params.Octaves,
		"stats", field.Stats(),
	)
}

// overrideSynth replaces the config values for every non-zero flag.
func overrideSynth(p paper.SynthParams, seed int64, scale float64, octaves int, contrast float64) paper.SynthParams {
	if seed != 0 {
		p.Seed = seed
	}
	if scale > 0 {
		p.Scale = scale
	}
	if octaves > 0 {
		p.Octaves = octaves
	}
	if contrast > 0 {
		p.Contrast = contrast
	}
	return p
}
