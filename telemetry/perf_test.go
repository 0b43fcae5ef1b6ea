package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartRun()
		pc.StartPhase(PhaseRender)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseAnalyze)
		time.Sleep(200 * time.Microsecond)
		pc.EndRun()
	}

	stats := pc.Stats()

	if stats.AvgRunDuration <= 0 {
		t.Error("expected positive average run duration")
	}
	if stats.Runs != 5 {
		t.Errorf("Runs = %d, want 5", stats.Runs)
	}
	if _, ok := stats.PhaseAvg[PhaseRender]; !ok {
		t.Error("expected render phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[PhaseAnalyze]; !ok {
		t.Error("expected analyze phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartRun()
		pc.StartPhase(PhaseRender)
		time.Sleep(10 * time.Microsecond)
		pc.EndRun()
	}

	stats := pc.Stats()
	if stats.Runs != 5 {
		t.Errorf("Runs = %d, want window size 5", stats.Runs)
	}
	if stats.AvgRunDuration <= 0 {
		t.Error("expected positive average run duration after window filled")
	}
	if stats.MinRunDuration > stats.MaxRunDuration {
		t.Errorf("min %v > max %v", stats.MinRunDuration, stats.MaxRunDuration)
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for _, run := range []time.Duration{4 * time.Millisecond, 6 * time.Millisecond} {
		pc.record(PerfSample{
			RunDuration: run,
			Phases: map[string]time.Duration{
				PhaseRender:  run / 4,
				PhaseAnalyze: run * 3 / 4,
			},
		})
	}

	stats := pc.Stats()
	if stats.AvgRunDuration != 5*time.Millisecond {
		t.Errorf("AvgRunDuration = %v, want 5ms", stats.AvgRunDuration)
	}
	if got := stats.PhasePct[PhaseRender]; math.Abs(got-25) > 1e-9 {
		t.Errorf("render = %v%%, want 25%%", got)
	}
	if got := stats.PhasePct[PhaseAnalyze]; math.Abs(got-75) > 1e-9 {
		t.Errorf("analyze = %v%%, want 75%%", got)
	}
	if stats.MinRunDuration != 4*time.Millisecond || stats.MaxRunDuration != 6*time.Millisecond {
		t.Errorf("min/max = %v/%v, want 4ms/6ms", stats.MinRunDuration, stats.MaxRunDuration)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()
	if stats.AvgRunDuration != 0 {
		t.Error("expected zero avg run duration for empty collector")
	}
	if stats.PhaseAvg == nil {
		t.Error("expected non-nil PhaseAvg map")
	}
	if stats.PhasePct == nil {
		t.Error("expected non-nil PhasePct map")
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	s := PerfStats{
		AvgRunDuration: 2 * time.Millisecond,
		PhasePct:       map[string]float64{PhaseRender: 60, PhaseCompare: 5},
	}
	rec := s.ToCSV(3)
	if rec.Run != 3 || rec.AvgRunUS != 2000 || rec.RenderPct != 60 || rec.ComparePct != 5 || rec.LoadPct != 0 {
		t.Errorf("ToCSV = %+v", rec)
	}
}
