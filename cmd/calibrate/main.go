// Package main builds a normalized falloff table from a directory of
// captured stamps.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/pthm-cable/graphite/calibrate"
	"github.com/pthm-cable/graphite/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	dir := flag.String("dir", "", "Directory of captures named ...-S<d>-P<p>-N<n>.csv|png")
	out := flag.String("out", "falloff_normalized.csv", "Output normalized table")
	s0 := flag.Float64("s0", 0, "Reference diameter (0 = use config)")
	binWidth := flag.Float64("bin-width", 0, "Radial bin width for image captures (0 = use config)")
	logText := flag.Bool("log-text", false, "Log as text instead of JSON")
	flag.Parse()

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)
	if *logText {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if *dir == "" {
		slog.Error("--dir is required")
		os.Exit(1)
	}
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *s0 > 0 {
		cfg.Calibration.S0 = *s0
	}
	if *binWidth > 0 {
		cfg.Calibration.BinWidth = *binWidth
	}

	rep, err := calibrate.Harvest(*dir, cfg.Calibration.BinWidth, logger)
	if err != nil {
		slog.Error("failed to harvest captures", "error", err)
		os.Exit(1)
	}
	slog.Info("harvested captures", "dir", *dir, "report", rep)

	res, err := calibrate.Normalize(rep.Samples, calibrate.Options{
		S0:     cfg.Calibration.S0,
		Logger: logger,
	})
	if err != nil {
		slog.Error("failed to normalize", "error", err)
		os.Exit(1)
	}
	if err := res.WriteFile(*out); err != nil {
		slog.Error("failed to write table", "error", err)
		os.Exit(1)
	}
	slog.Info("normalized table written", "path", *out, "result", res)
}
