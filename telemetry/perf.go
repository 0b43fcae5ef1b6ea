package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one pipeline run.
const (
	PhaseLoad     = "load"
	PhaseRender   = "render"
	PhaseAnalyze  = "analyze"
	PhaseCompare  = "compare"
	PhaseEstimate = "estimate"
	PhaseWrite    = "write"
)

var phases = []string{PhaseLoad, PhaseRender, PhaseAnalyze, PhaseCompare, PhaseEstimate, PhaseWrite}

// PerfSample holds timing data for a single run.
type PerfSample struct {
	RunDuration time.Duration
	Phases      map[string]time.Duration
}

// PerfCollector tracks phase timings over a rolling window of runs.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	runStart      time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a new performance collector averaging over
// windowSize runs.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 16
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartRun begins timing a new run.
func (p *PerfCollector) StartRun() {
	p.runStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase, ending the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndRun finishes timing the current run and records the sample.
func (p *PerfCollector) EndRun() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.record(PerfSample{
		RunDuration: now.Sub(p.runStart),
		Phases:      p.currentPhases,
	})
	p.lastPhase = ""
}

// record stores a finished run in the rolling window.
func (p *PerfCollector) record(s PerfSample) {
	p.samples[p.writeIndex] = s
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Runs int

	AvgRunDuration time.Duration
	MinRunDuration time.Duration
	MaxRunDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total run time
	PhasePct map[string]float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total, minRun, maxRun time.Duration
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.RunDuration
		if i == 0 || s.RunDuration < minRun {
			minRun = s.RunDuration
		}
		if s.RunDuration > maxRun {
			maxRun = s.RunDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	return PerfStats{
		Runs:           p.sampleCount,
		AvgRunDuration: avg,
		MinRunDuration: minRun,
		MaxRunDuration: maxRun,
		PhaseAvg:       phaseAvg,
		PhasePct:       phasePct,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("runs", s.Runs),
		slog.Int64("avg_run_us", s.AvgRunDuration.Microseconds()),
		slog.Int64("min_run_us", s.MinRunDuration.Microseconds()),
		slog.Int64("max_run_us", s.MaxRunDuration.Microseconds()),
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Run         int     `csv:"run"`
	AvgRunUS    int64   `csv:"avg_run_us"`
	MinRunUS    int64   `csv:"min_run_us"`
	MaxRunUS    int64   `csv:"max_run_us"`
	LoadPct     float64 `csv:"load_pct"`
	RenderPct   float64 `csv:"render_pct"`
	AnalyzePct  float64 `csv:"analyze_pct"`
	ComparePct  float64 `csv:"compare_pct"`
	EstimatePct float64 `csv:"estimate_pct"`
	WritePct    float64 `csv:"write_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(run int) PerfStatsCSV {
	return PerfStatsCSV{
		Run:         run,
		AvgRunUS:    s.AvgRunDuration.Microseconds(),
		MinRunUS:    s.MinRunDuration.Microseconds(),
		MaxRunUS:    s.MaxRunDuration.Microseconds(),
		LoadPct:     s.PhasePct[PhaseLoad],
		RenderPct:   s.PhasePct[PhaseRender],
		AnalyzePct:  s.PhasePct[PhaseAnalyze],
		ComparePct:  s.PhasePct[PhaseCompare],
		EstimatePct: s.PhasePct[PhaseEstimate],
		WritePct:    s.PhasePct[PhaseWrite],
	}
}
