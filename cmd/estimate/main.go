// Package main recovers the paper noise field from a captured dot.
package main

import (
	"flag"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/pthm-cable/graphite/calibrate"
	"github.com/pthm-cable/graphite/config"
	"github.com/pthm-cable/graphite/estimate"
	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/pipeline"
	"github.com/pthm-cable/graphite/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	in := flag.String("in", "", "Captured dot image, ideally named ...-S<d>-P<p>-N<n>.png")
	out := flag.String("out", "", "Output noise field PNG (empty = <in>_noise.png)")
	diameter := flag.Float64("diameter", 0, "Dot diameter in px (0 = from the file name, else the image width)")
	s0 := flag.Float64("s0", 0, "Reference diameter (0 = use config)")
	logText := flag.Bool("log-text", false, "Log as text instead of JSON")
	flag.Parse()

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)
	if *logText {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if *in == "" {
		slog.Error("--in is required")
		os.Exit(1)
	}
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *s0 > 0 {
		cfg.Estimator.S0 = *s0
	}
	if *out == "" {
		ext := filepath.Ext(*in)
		*out = (*in)[:len(*in)-len(ext)] + "_noise.png"
	}

	perf := telemetry.NewPerfCollector(1)
	perf.StartRun()
	perf.StartPhase(telemetry.PhaseLoad)

	profile, err := pipeline.LoadProfile(cfg.Falloff)
	if err != nil {
		slog.Error("failed to load falloff", "error", err)
		os.Exit(1)
	}
	img, err := imageio.Decode(*in)
	if err != nil {
		slog.Error("failed to read capture", "error", err)
		os.Exit(1)
	}
	scaled, err := toReferenceScale(img, *in, *diameter, cfg.Estimator.S0)
	if err != nil {
		slog.Error("failed to rescale capture", "error", err)
		os.Exit(1)
	}

	perf.StartPhase(telemetry.PhaseEstimate)
	res, err := estimate.EstimateImage(scaled, profile, estimate.Options{
		S0:      cfg.Estimator.S0,
		Epsilon: cfg.Estimator.Epsilon,
		Logger:  logger,
	})
	if err != nil {
		slog.Error("failed to estimate noise", "error", err)
		os.Exit(1)
	}

	perf.StartPhase(telemetry.PhaseWrite)
	if err := imageio.EncodePNG(*out, res.Image()); err != nil {
		slog.Error("failed to write noise field", "error", err)
		os.Exit(1)
	}
	perf.EndRun()

	if err := logFieldStats(res, cfg); err != nil {
		slog.Warn("noise field stats unavailable", "error", err)
	}
	slog.Info("noise field written", "path", *out, "result", res, "perf", perf.Stats())
}

// toReferenceScale crops the dot out of img and resamples it onto the
// (s0+1)-pixel square canvas of an s0 stamp. The capture diameter comes from
// the flag, the file name, or the image width, in that order.
func toReferenceScale(img image.Image, path string, diameter, s0 float64) (image.Image, error) {
	if !(s0 > 0) {
		return nil, fmt.Errorf("reference diameter must be positive, got %v", s0)
	}
	if diameter <= 0 {
		if c, err := calibrate.ParseCaptureName(path); err == nil {
			diameter = c.Diameter
		} else {
			diameter = float64(img.Bounds().Dx() - 1)
		}
	}
	if diameter <= 0 {
		return nil, fmt.Errorf("capture %s is too small", filepath.Base(path))
	}

	crop := imageio.CropCenter(img, int(math.Ceil(diameter))+1)
	side := int(math.Round(s0)) + 1
	if crop.Bounds().Dx() == side {
		return crop, nil
	}
	return imageio.Rescale(crop, side, side), nil
}

func logFieldStats(res *estimate.Result, cfg *config.Config) error {
	f, err := res.Field(cfg.PaperOptions())
	if err != nil {
		return err
	}
	slog.Info("estimated field", "stats", f.Stats())
	return nil
}
