package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/graphite/compare"
	"github.com/pthm-cable/graphite/pipeline"
)

// failedFitness is returned for parameter vectors that cannot be rendered
// or scored.
const failedFitness = 1e3

// FitnessEvaluator renders candidates against a shared model and scores
// them against the model's reference.
type FitnessEvaluator struct {
	params       *ParamVector
	model        *pipeline.Model
	base         pipeline.Render
	offsets      [][2]float64 // noise offset per seed
	stddevWeight float64
	workers      int

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestScore   compare.ChannelMetrics
	lastScore   compare.ChannelMetrics // mean score from the most recent Evaluate call
	failures    int
}

// NewFitnessEvaluator creates a new evaluator. Seed i samples the paper at
// the base offset shifted by i diameters, so each seed sees a different
// patch.
func NewFitnessEvaluator(params *ParamVector, model *pipeline.Model, base pipeline.Render, seeds, workers int, stddevWeight float64) *FitnessEvaluator {
	if seeds < 1 {
		seeds = 1
	}
	if workers < 1 {
		workers = seeds
	}
	offsets := make([][2]float64, seeds)
	for i := range offsets {
		shift := float64(i) * base.Diameter
		offsets[i] = [2]float64{base.Noise.OffsetX + shift, base.Noise.OffsetY + shift/2}
	}
	return &FitnessEvaluator{
		params:       params,
		model:        model,
		base:         base,
		offsets:      offsets,
		stddevWeight: stddevWeight,
		workers:      workers,
		bestFitness:  math.Inf(1),
	}
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness float64
	score   compare.ChannelMetrics
	err     error
}

// Evaluate computes fitness for a raw parameter vector (lower = better):
// the mean RMSE plus stddevWeight times the stddev RMSE, averaged over
// seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	r := fe.base
	fe.params.ApplyToRender(&r, x)

	// Run all seeds in parallel, at most fe.workers at a time
	results := make([]seedResult, len(fe.offsets))
	sem := make(chan struct{}, fe.workers)
	var wg sync.WaitGroup

	for i, off := range fe.offsets {
		wg.Add(1)
		go func(idx int, off [2]float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			seedRender := r
			seedRender.Noise.OffsetX, seedRender.Noise.OffsetY = off[0], off[1]
			ev, err := fe.model.Evaluate(seedRender)
			if err != nil {
				results[idx] = seedResult{err: err}
				return
			}
			results[idx] = seedResult{
				fitness: fe.computeFitness(ev.Score),
				score:   ev.Score,
			}
		}(i, off)
	}
	wg.Wait()

	// Aggregate results
	var total float64
	var mean compare.ChannelMetrics
	for _, res := range results {
		if res.err != nil {
			fe.mu.Lock()
			fe.failures++
			fe.lastScore = compare.ChannelMetrics{}
			fe.mu.Unlock()
			return failedFitness
		}
		total += res.fitness
		mean.Mean.MAE += res.score.Mean.MAE
		mean.Mean.RMSE += res.score.Mean.RMSE
		mean.Stddev.MAE += res.score.Stddev.MAE
		mean.Stddev.RMSE += res.score.Stddev.RMSE
	}
	n := float64(len(results))
	mean.Mean.MAE /= n
	mean.Mean.RMSE /= n
	mean.Stddev.MAE /= n
	mean.Stddev.RMSE /= n
	mean.Mean.N = results[0].score.Mean.N
	mean.Stddev.N = results[0].score.Stddev.N
	avgFitness := total / n

	// Update best tracking
	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestScore = mean
	}
	fe.lastScore = mean
	fe.mu.Unlock()

	return avgFitness
}

// computeFitness combines the channel RMSEs into one scalar.
func (fe *FitnessEvaluator) computeFitness(s compare.ChannelMetrics) float64 {
	return s.Mean.RMSE + fe.stddevWeight*s.Stddev.RMSE
}

// LastScore returns the seed-averaged score from the most recent evaluation.
func (fe *FitnessEvaluator) LastScore() compare.ChannelMetrics {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastScore
}

// BestScore returns the seed-averaged score of the best evaluation.
func (fe *FitnessEvaluator) BestScore() compare.ChannelMetrics {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestScore
}

// Failures returns the number of evaluations that could not be scored.
func (fe *FitnessEvaluator) Failures() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.failures
}
