// Package main provides CMA-ES calibration of the paper noise model against
// a captured radial table.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/graphite/config"
	"github.com/pthm-cable/graphite/pipeline"
)

// defaultPopulation is the standard CMA-ES lambda, 4 + floor(3*ln(n)).
func defaultPopulation(dim int) int {
	if dim < 1 {
		dim = 1
	}
	return 4 + int(math.Floor(3*math.Log(float64(dim))))
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// evalRecord is one row of optimize_log.csv.
type evalRecord struct {
	Eval          int     `csv:"eval"`
	Fitness       float64 `csv:"fitness"`
	MeanRMSE      float64 `csv:"mean_rmse"`
	StddevRMSE    float64 `csv:"stddev_rmse"`
	NoiseStrength float64 `csv:"noise_strength"`
	NoiseGain     float64 `csv:"noise_gain"`
	LowFreqMix    float64 `csv:"low_freq_mix"`
	LowFreqScale  float64 `csv:"low_freq_scale"`
	ApplyMode     string  `csv:"apply_mode"`
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	reference := flag.String("reference", "", "Radial CSV with stddev to fit against (overrides analysis.reference)")
	seeds := flag.Int("seeds", 0, "Noise offsets per evaluation (0 = use config)")
	maxEvals := flag.Int("max-evals", 0, "Maximum number of evaluations (0 = use config)")
	population := flag.Int("population", -1, "CMA-ES population size (negative = use config, 0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *outputDir == "" {
		slog.Error("--output is required")
		os.Exit(1)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	// Load base config
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	baseCfg := config.Cfg()
	baseCfg.Noise.Enabled = true
	if *reference != "" {
		baseCfg.Analysis.Reference = *reference
	}
	if baseCfg.Analysis.Reference == "" {
		slog.Error("a reference radial table is required (--reference or analysis.reference)")
		os.Exit(1)
	}
	opt := baseCfg.Optimize
	if *seeds > 0 {
		opt.Seeds = *seeds
	}
	if *maxEvals > 0 {
		opt.MaxEvals = *maxEvals
	}
	if *population >= 0 {
		opt.Population = *population
	}
	if opt.Workers <= 0 {
		opt.Workers = runtime.GOMAXPROCS(0)
	}

	model, err := pipeline.LoadModel(baseCfg, logger)
	if err != nil {
		slog.Error("failed to load model", "error", err)
		os.Exit(1)
	}
	if model.Reference.Stddev == nil {
		slog.Warn("reference has no stddev column; fitting the mean channel only")
	}

	params := NewParamVector(baseCfg)
	evaluator := NewFitnessEvaluator(params, model, pipeline.RenderFromConfig(baseCfg), opt.Seeds, opt.Workers, opt.StddevWeight)

	// Set up CMA-ES
	dim := params.Dim()
	initX := params.Normalize(params.DefaultVector())

	popSize := opt.Population
	if popSize == 0 {
		popSize = defaultPopulation(dim)
	}
	sigma := opt.Sigma
	if sigma <= 0 {
		sigma = 0.3
	}
	method := &optimize.CmaEsChol{
		InitStepSize: sigma,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: opt.MaxEvals,
		Concurrent:      0, // seeds already run in parallel
	}

	// Open log file
	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		slog.Error("failed to create log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	// Track evaluations and timing
	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Denormalize and clamp to get actual parameter values
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			score := evaluator.LastScore()
			rec := []evalRecord{{
				Eval:          evalCount,
				Fitness:       fitness,
				MeanRMSE:      score.Mean.RMSE,
				StddevRMSE:    score.Stddev.RMSE,
				NoiseStrength: clamped[0],
				NoiseGain:     clamped[1],
				LowFreqMix:    clamped[2],
				LowFreqScale:  clamped[3],
				ApplyMode:     Mode(clamped[4]).String(),
			}}
			var werr error
			if evalCount == 1 {
				werr = gocsv.Marshal(rec, logFile)
			} else {
				werr = gocsv.MarshalWithoutHeaders(rec, logFile)
			}
			if werr != nil {
				slog.Error("failed to write evaluation log", "error", werr)
			}

			// Calculate timing
			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(opt.MaxEvals-evalCount) * avgPerEval

			slog.Info("evaluation",
				"eval", evalCount,
				"max_evals", opt.MaxEvals,
				"fitness", fitness,
				"best", bestFitness,
				"score", score,
				"elapsed", formatDuration(elapsed),
				"eta", formatDuration(remaining),
			)
			return fitness
		},
	}

	slog.Info("starting CMA-ES optimization",
		"params", dim,
		"population", popSize,
		"max_evals", opt.MaxEvals,
		"seeds", opt.Seeds,
		"workers", opt.Workers,
		"reference", baseCfg.Analysis.Reference,
	)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		slog.Error("no evaluation completed")
		os.Exit(1)
	}

	attrs := []any{
		"evals", evalCount,
		"duration", formatDuration(time.Since(startTime)),
		"fitness", bestFitness,
		"score", evaluator.BestScore(),
		"failures", evaluator.Failures(),
	}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, bestParams[i])
	}
	slog.Info("optimization complete", attrs...)

	// Save best config
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to reload config", "error", err)
		os.Exit(1)
	}
	bestCfg.Analysis.Reference = baseCfg.Analysis.Reference
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		slog.Error("failed to write best config", "error", err)
		os.Exit(1)
	}
	slog.Info("best config saved", "path", configOutPath)
}
