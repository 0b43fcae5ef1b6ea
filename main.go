package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/pthm-cable/graphite/config"
	"github.com/pthm-cable/graphite/pipeline"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for stamp PNGs, radial CSVs and run logs")
	reference := flag.String("reference", "", "Radial CSV to score against (overrides analysis.reference)")
	diameter := flag.Float64("diameter", 0, "Stamp diameter in px (0 = use config)")
	pressure := flag.Float64("pressure", -1, "Pressure in [0,1] (negative = use config)")
	stamps := flag.Int("stamps", 0, "Stamp repeat count (0 = use config)")
	runs := flag.Int("runs", 1, "Number of renders; each shifts the noise offset by one diameter")
	logText := flag.Bool("log-text", false, "Log as text instead of JSON")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)
	if *logText {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *reference != "" {
		cfg.Analysis.Reference = *reference
	}

	p, err := pipeline.New(cfg, pipeline.Options{
		OutputDir: *outputDir,
		Logger:    logger,
	})
	if err != nil {
		slog.Error("failed to start pipeline", "error", err)
		os.Exit(1)
	}

	r := pipeline.RenderFromConfig(cfg)
	if *diameter > 0 {
		r.Diameter = *diameter
	}
	if *pressure >= 0 {
		r.Pressure = *pressure
	}
	if *stamps > 0 {
		r.Stamps = *stamps
	}

	slog.Info("rendering",
		"canvas", r.CanvasSize,
		"diameter", r.Diameter,
		"pressure", r.Pressure,
		"stamps", r.Stamps,
		"runs", *runs,
		"output_dir", p.OutputDir(),
	)

	exit := 0
	for i := 0; i < *runs; i++ {
		if _, err := p.Run(r); err != nil {
			slog.Error("render failed", "error", err)
			exit = 1
			break
		}
		r.Noise.OffsetX += r.Diameter
	}
	if err := p.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
		exit = 1
	}
	os.Exit(exit)
}
