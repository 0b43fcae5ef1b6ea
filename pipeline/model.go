package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pthm-cable/graphite/calibrate"
	"github.com/pthm-cable/graphite/compare"
	"github.com/pthm-cable/graphite/config"
	"github.com/pthm-cable/graphite/falloff"
	"github.com/pthm-cable/graphite/imageio"
	"github.com/pthm-cable/graphite/paper"
	"github.com/pthm-cable/graphite/radial"
	"github.com/pthm-cable/graphite/stamp"
	"github.com/pthm-cable/graphite/table"
	"github.com/pthm-cable/graphite/telemetry"
)

// Model holds the read-only inputs shared by every render. It is safe for
// concurrent use once loaded.
type Model struct {
	Profile   *falloff.Profile
	Field     *paper.Field      // nil when noise is disabled
	Reference *compare.Channels // nil when nothing is scored
	Floor     stamp.FloorTable
	BinWidth  float64
	Quantize  bool
}

// Render is one point in brush parameter space.
type Render struct {
	CanvasSize int
	Diameter   float64
	Pressure   float64
	Stamps     int

	// Noise.Field is supplied by the model. Zero strength renders plain.
	Noise stamp.Noise
}

// Evaluation is a rendered stamp, its radial statistics and, when the model
// has a reference, its score.
type Evaluation struct {
	Stamp  *stamp.Result
	Alpha  []float64 // analyzed values; quantized when the model quantizes
	Radial *radial.Table
	Scored bool
	Score  compare.ChannelMetrics // Stddev is zero when the reference has no stddev column
	Stats  telemetry.RunStats
}

// LoadModel builds the falloff profile, noise field and reference described
// by cfg.
func LoadModel(cfg *config.Config, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	profile, err := LoadProfile(cfg.Falloff)
	if err != nil {
		return nil, err
	}
	field, err := LoadField(cfg)
	if err != nil {
		return nil, err
	}
	m := &Model{
		Profile:  profile,
		Field:    field,
		Floor:    cfg.Derived.Floor,
		BinWidth: cfg.Analysis.BinWidth,
		Quantize: cfg.Render.Quantize,
	}
	if m.BinWidth <= 0 {
		m.BinWidth = radial.DefaultBinWidth
	}

	if path := cfg.Analysis.Reference; path != "" {
		t, err := table.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading reference: %w", err)
		}
		if len(t.Rows) == 0 {
			return nil, fmt.Errorf("reading reference: %s has no rows", path)
		}
		ref := compare.ChannelsFromTable(t)
		m.Reference = &ref
		logger.Info("loaded reference",
			"path", path,
			"rows", len(t.Rows),
			"stddev", t.HasStddev,
			"skipped", t.Skipped,
		)
	}

	if field != nil {
		logger.Info("loaded noise field", "texture", cfg.Noise.Texture, "stats", field.Stats())
	}
	logger.Info("loaded falloff", "source", cfg.Falloff.Source, "samples", profile.Len())
	return m, nil
}

// LoadProfile resolves the configured falloff source.
func LoadProfile(fc config.FalloffConfig) (*falloff.Profile, error) {
	switch strings.ToLower(fc.Source) {
	case "", "reference":
		return falloff.Reference(), nil
	case "flat":
		return falloff.Flat(), nil
	case "linear", "ideal":
		return falloff.Linear(), nil
	case "table":
		if fc.Table == "" {
			return nil, fmt.Errorf("falloff.table: required when source is table")
		}
		t, err := table.ParseFile(fc.Table)
		if err != nil {
			return nil, fmt.Errorf("reading falloff table: %w", err)
		}
		scale := fc.RadiusScale
		if scale <= 0 {
			scale = RadiusScale(t)
		}
		p, err := falloff.FromTable(t, scale)
		if err != nil {
			return nil, fmt.Errorf("building falloff from %s: %w", fc.Table, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("falloff.source: unknown source %q", fc.Source)
}

// RadiusScale infers the table radius that maps to r01 = 1: half the S0
// recorded in the metadata line, half the default S0 for normalized tables
// without one, and percent otherwise.
func RadiusScale(t *table.Table) float64 {
	if s0, ok := t.Meta.Float("S0"); ok && s0 > 0 {
		return s0 / 2
	}
	if t.Kind == table.KindNormalized {
		return calibrate.DefaultS0 / 2
	}
	return falloff.PercentScale
}

// LoadField loads the configured paper texture, or synthesizes one when no
// texture is set. It returns nil when noise is disabled.
func LoadField(cfg *config.Config) (*paper.Field, error) {
	if !cfg.Noise.Enabled {
		return nil, nil
	}
	if cfg.Noise.Texture == "" {
		f, err := paper.Generate(cfg.Paper.Size, cfg.Derived.Synth, cfg.PaperOptions())
		if err != nil {
			return nil, fmt.Errorf("synthesizing paper: %w", err)
		}
		return f, nil
	}
	img, err := imageio.Decode(cfg.Noise.Texture)
	if err != nil {
		return nil, fmt.Errorf("reading paper texture: %w", err)
	}
	f, err := paper.Load(img, cfg.PaperOptions())
	if err != nil {
		return nil, fmt.Errorf("loading paper texture: %w", err)
	}
	return f, nil
}

// RenderFromConfig returns the render described by the render and noise
// sections.
func RenderFromConfig(cfg *config.Config) Render {
	n := cfg.Noise
	r := Render{
		CanvasSize: cfg.Render.CanvasSize,
		Diameter:   cfg.Render.Diameter,
		Pressure:   cfg.Render.Pressure,
		Stamps:     cfg.Render.Stamps,
	}
	if n.Enabled {
		r.Noise = stamp.Noise{
			Strength:     n.Strength,
			Gain:         n.Gain,
			Scale:        n.Scale,
			OffsetX:      n.OffsetX,
			OffsetY:      n.OffsetY,
			LowFreqScale: n.LowFreqScale,
			LowFreqMix:   n.LowFreqMix,
			Mode:         cfg.Derived.ApplyMode,
		}
	}
	return r
}

// Request turns r into a compositor request against the model.
func (m *Model) Request(r Render) stamp.Request {
	floor := m.Floor
	req := stamp.Request{
		CanvasSize: r.CanvasSize,
		Diameter:   r.Diameter,
		Pressure:   r.Pressure,
		Stamps:     r.Stamps,
		Profile:    m.Profile,
		Floor:      &floor,
	}
	if m.Field != nil && r.Noise.Strength > 0 {
		nz := r.Noise
		nz.Field = m.Field
		req.Noise = &nz
	}
	return req
}

// Evaluate renders r, analyzes it and scores it against the reference.
func (m *Model) Evaluate(r Render) (*Evaluation, error) {
	return m.evaluate(r, nil)
}

func (m *Model) evaluate(r Render, perf *telemetry.PerfCollector) (*Evaluation, error) {
	phase(perf, telemetry.PhaseRender)
	req := m.Request(r)
	res, err := stamp.Render(req)
	if err != nil {
		return nil, fmt.Errorf("rendering stamp: %w", err)
	}

	ev := &Evaluation{Stamp: res, Alpha: res.Alpha}
	if m.Quantize {
		ev.Alpha = res.Quantized()
	}

	phase(perf, telemetry.PhaseAnalyze)
	ev.Radial, err = radial.AnalyzeMasked(ev.Alpha, res.Footprint, res.Size, res.Size, m.BinWidth)
	if err != nil {
		return nil, fmt.Errorf("analyzing stamp: %w", err)
	}

	ev.Stats = telemetry.RunStats{
		Diameter:   r.Diameter,
		Pressure:   r.Pressure,
		Stamps:     r.Stamps,
		KMeanNorm:  res.KMeanNorm,
		Pixels:     res.Pixels,
		BelowFloor: res.BelowFloor,
	}
	if req.Noise != nil {
		ev.Stats.NoiseStrength = req.Noise.Strength
		ev.Stats.ApplyMode = req.Noise.Mode.String()
	}
	footprint := make([]float64, 0, res.Pixels)
	for i, in := range res.Footprint {
		if in {
			footprint = append(footprint, ev.Alpha[i])
		}
	}
	ev.Stats.SetAlpha(telemetry.Summarize(footprint))

	if m.Reference == nil {
		return ev, nil
	}
	phase(perf, telemetry.PhaseCompare)
	if err := m.score(ev); err != nil {
		return nil, fmt.Errorf("scoring against reference: %w", err)
	}
	return ev, nil
}

func (m *Model) score(ev *Evaluation) error {
	sim := compare.ChannelsFromRows(ev.Radial.Rows(), true)
	if m.Reference.Stddev != nil {
		score, err := compare.CompareChannels(sim, *m.Reference)
		if err != nil {
			return err
		}
		ev.Score = score
	} else {
		mean, err := compare.Compare(sim.Mean, m.Reference.Mean)
		if err != nil {
			return err
		}
		ev.Score.Mean = mean
	}
	ev.Scored = true
	ev.Stats.Scored = true
	ev.Stats.MeanMAE = ev.Score.Mean.MAE
	ev.Stats.MeanRMSE = ev.Score.Mean.RMSE
	ev.Stats.StddevMAE = ev.Score.Stddev.MAE
	ev.Stats.StddevRMSE = ev.Score.Stddev.RMSE
	return nil
}

func phase(perf *telemetry.PerfCollector, name string) {
	if perf != nil {
		perf.StartPhase(name)
	}
}
