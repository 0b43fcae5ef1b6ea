// Package pipeline renders stamps from a loaded configuration, analyzes
// them and scores them against a reference radial table, recording timing
// and run output along the way.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/graphite/config"
	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/telemetry"
)

// Options holds configuration for pipeline initialization.
type Options struct {
	OutputDir string // overrides telemetry.output_dir when set
	Logger    *slog.Logger
}

// Pipeline holds the loaded model and the run bookkeeping.
type Pipeline struct {
	cfg    *config.Config
	model  *Model
	logger *slog.Logger

	perf          *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	runs          int
}

// New loads the model described by cfg and opens the output directory.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	model, err := LoadModel(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("model loaded", "elapsed", time.Since(start))

	dir := cfg.Telemetry.OutputDir
	if opts.OutputDir != "" {
		dir = opts.OutputDir
	}
	om, err := telemetry.NewOutputManager(dir)
	if err != nil {
		return nil, err
	}
	if err := om.WriteConfig(cfg); err != nil {
		om.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	return &Pipeline{
		cfg:           cfg,
		model:         model,
		logger:        logger,
		perf:          telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		outputManager: om,
	}, nil
}

// Model returns the loaded model.
func (p *Pipeline) Model() *Model {
	return p.model
}

// Run renders r, records its statistics and writes the stamp image and
// radial table when output is enabled.
func (p *Pipeline) Run(r Render) (*Evaluation, error) {
	p.runs++
	p.perf.StartRun()

	ev, err := p.model.evaluate(r, p.perf)
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", p.runs, err)
	}
	ev.Stats.Run = p.runs

	p.perf.StartPhase(telemetry.PhaseWrite)
	if err := p.writeRun(ev); err != nil {
		return nil, fmt.Errorf("run %d: %w", p.runs, err)
	}
	p.perf.EndRun()

	if err := p.outputManager.WritePerf(p.perf.Stats(), p.runs); err != nil {
		p.logger.Error("failed to write perf", "error", err)
	}
	p.logger.Info("stamp rendered", "stats", ev.Stats)
	return ev, nil
}

func (p *Pipeline) writeRun(ev *Evaluation) error {
	if p.outputManager == nil {
		return nil
	}
	if err := p.outputManager.WriteRun(ev.Stats); err != nil {
		return err
	}
	size := ev.Stamp.Size
	if err := p.outputManager.WriteImage(fmt.Sprintf("stamp_%03d.png", ev.Stats.Run), imageio.AlphaImage(ev.Alpha, size, size)); err != nil {
		return fmt.Errorf("writing stamp image: %w", err)
	}
	name := fmt.Sprintf("radial_%03d.csv", ev.Stats.Run)
	if err := p.outputManager.WriteRadial(name, ev.Radial.Rows(), p.cfg.Analysis.WithStddev); err != nil {
		return fmt.Errorf("writing radial table: %w", err)
	}
	return nil
}

// Runs returns the number of completed runs.
func (p *Pipeline) Runs() int {
	return p.runs
}

// Perf returns timing statistics over the recent runs.
func (p *Pipeline) Perf() telemetry.PerfStats {
	return p.perf.Stats()
}

// OutputDir returns the output directory, or "" when output is disabled.
func (p *Pipeline) OutputDir() string {
	return p.outputManager.Dir()
}

// Close logs the timing summary and closes the output files.
func (p *Pipeline) Close() error {
	if p.runs > 0 {
		p.logger.Info("pipeline finished", "runs", p.runs, "perf", p.perf.Stats())
	}
	return p.outputManager.Close()
}
