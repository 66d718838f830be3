// Package evolution implements a differential evolution search engine
// (best/1/bin) with generation-synchronous greedy replacement.
package evolution

import (
	"context"
	"math/rand"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/copyleftdev/STRUT/internal/optimization"
)

// Default variation parameters, applied when the config leaves them zero.
const (
	// DefaultDifferentialWeight scales the donor difference vector.
	DefaultDifferentialWeight = 0.5

	// DefaultCrossoverRate is the per-gene probability of inheriting
	// from the donor rather than the parent.
	DefaultCrossoverRate = 0.7
)

// DifferentialEvolution implements optimization.Optimizer using the
// best/1/bin strategy: each trial is built from the current population
// champion plus a weighted difference of two distinct random members,
// crossed binomially with its parent. A trial replaces its parent iff
// its score is no worse, so the best score never regresses.
type DifferentialEvolution struct {
	// Configuration
	config optimization.OptimizerConfig

	// Random number generator; the single source of randomness for
	// the run
	rng *rand.Rand

	// Guards bestSolution and tracker, which callers may poll while
	// a run is in flight
	mu sync.Mutex

	// Best solution found
	bestSolution *optimization.Solution

	// Convergence records of the most recent run
	tracker *Tracker

	// Optional structured logger for run progress
	logger *zap.Logger

	// For cancellation
	cancel context.CancelFunc
}

// NewDifferentialEvolution creates a new engine after validating the
// configuration. Invalid bounds, a non-positive population size or
// generation count, and a missing objective are all rejected here,
// before any generation runs.
func NewDifferentialEvolution(config optimization.OptimizerConfig) (*DifferentialEvolution, error) {
	if config.DifferentialWeight == 0 {
		config.DifferentialWeight = DefaultDifferentialWeight
	}
	if config.CrossoverRate == 0 {
		config.CrossoverRate = DefaultCrossoverRate
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return &DifferentialEvolution{
		config: config,
		rng:    rand.New(rand.NewSource(config.RandomSeed)),
	}, nil
}

// validateConfig rejects malformed configurations. These are caller
// errors, surfaced synchronously and never silently fixed.
func validateConfig(config optimization.OptimizerConfig) error {
	wrap := func(e *optimization.Error) error {
		return e.WithComponent("evolution").WithOperation("validate_config")
	}

	if config.Objective == nil {
		return wrap(optimization.NewError("objective function is required"))
	}
	if len(config.Bounds) == 0 {
		return wrap(optimization.NewError("at least one bounded dimension is required"))
	}
	for i, b := range config.Bounds {
		if b[0] > b[1] {
			return wrap(optimization.NewErrorf("inverted bounds for dimension %d: [%v, %v]", i, b[0], b[1]))
		}
	}
	// best/1/bin needs the parent, the champion and two distinct donors.
	if config.PopulationSize < 4 {
		return wrap(optimization.NewErrorf("population size must be at least 4, got %d", config.PopulationSize))
	}
	if config.Generations < 1 {
		return wrap(optimization.NewErrorf("generation count must be positive, got %d", config.Generations))
	}
	if config.DifferentialWeight <= 0 {
		return wrap(optimization.NewErrorf("differential weight must be positive, got %v", config.DifferentialWeight))
	}
	if config.CrossoverRate < 0 || config.CrossoverRate > 1 {
		return wrap(optimization.NewErrorf("crossover rate must be in [0, 1], got %v", config.CrossoverRate))
	}
	return nil
}

// Optimize runs the configured number of generations and returns the
// best design found, its score, and the full generation record.
//
// Determinism: every random draw is made sequentially from the single
// seeded source, in member-index order, before any trial of that
// generation is evaluated. Evaluation may then fan out across
// goroutines (the objective is required to be pure) without changing
// the result, so a fixed seed reproduces the run bit for bit at any
// MaxGoroutines setting. When the call supplies a config, that config
// governs the run completely: the generator is reseeded from its
// RandomSeed. The constructor's seed applies to zero-config calls.
func (de *DifferentialEvolution) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	// Update config if provided
	if config.Objective != nil {
		if config.DifferentialWeight == 0 {
			config.DifferentialWeight = DefaultDifferentialWeight
		}
		if config.CrossoverRate == 0 {
			config.CrossoverRate = DefaultCrossoverRate
		}
		if err := validateConfig(config); err != nil {
			return nil, err
		}
		de.config = config
		// The supplied config governs the run completely, the seed
		// included.
		de.rng = rand.New(rand.NewSource(config.RandomSeed))
	}

	// Create a cancellable context
	ctx, de.cancel = context.WithCancel(ctx)
	defer de.cancel()

	// Fresh run-scoped state
	tracker := NewTracker(de.config.Generations)
	de.mu.Lock()
	de.tracker = tracker
	de.bestSolution = nil
	de.mu.Unlock()

	// Initial population: uniform within bounds
	pop := de.initialPopulation()
	de.evaluateInto(pop.scores, pop.members)

	for g := 1; g <= de.config.Generations; g++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// All randomness for this generation is consumed here,
		// sequentially, before any evaluation.
		trials := de.makeTrials(pop)

		scores := make([]float64, len(trials))
		de.evaluateInto(scores, trials)

		// Greedy, generation-synchronous replacement. Ties favor
		// the trial to keep moving through flat regions.
		for i := range trials {
			if scores[i] <= pop.scores[i] {
				pop.replace(i, trials[i], scores[i])
			}
		}

		de.mu.Lock()
		rec := tracker.Observe(g, pop)
		de.mu.Unlock()
		if de.config.OnGeneration != nil {
			de.config.OnGeneration(rec)
		}
		if de.logger != nil {
			de.logger.Debug("generation complete",
				zap.Int("generation", rec.Generation),
				zap.Float64("best_fitness", rec.BestFitness),
				zap.Float64("average_fitness", rec.AverageFitness))
		}
	}

	best := pop.bestIndex()
	solution := &optimization.Solution{
		Parameters: append([]float64(nil), pop.members[best]...),
		Value:      pop.scores[best],
	}

	de.mu.Lock()
	de.bestSolution = solution
	de.mu.Unlock()

	if de.logger != nil {
		de.logger.Info("evolution finished",
			zap.Int("generations", de.config.Generations),
			zap.Float64("best_fitness", solution.Fitness()),
			zap.Float64s("best_parameters", solution.Parameters))
	}

	return &optimization.OptimizationResult{
		BestSolution: solution,
		Records:      tracker.Records(),
		Generations:  de.config.Generations,
	}, nil
}

// GetBestSolution returns the best solution found so far
func (de *DifferentialEvolution) GetBestSolution() *optimization.Solution {
	de.mu.Lock()
	defer de.mu.Unlock()
	return de.bestSolution
}

// GetRecords returns the convergence records of the most recent run.
// It is safe to call while a run is in flight.
func (de *DifferentialEvolution) GetRecords() []optimization.GenerationRecord {
	de.mu.Lock()
	defer de.mu.Unlock()
	if de.tracker == nil {
		return nil
	}
	return de.tracker.Records()
}

// SetLogger attaches a structured logger for run progress. Attach it
// before calling Optimize; a nil logger keeps the engine silent.
func (de *DifferentialEvolution) SetLogger(logger *zap.Logger) {
	de.logger = logger
}

// Stop stops the optimization process
func (de *DifferentialEvolution) Stop() {
	if de.cancel != nil {
		de.cancel()
	}
}

// initialPopulation draws the starting population uniformly at random
// within bounds.
func (de *DifferentialEvolution) initialPopulation() *population {
	nDims := len(de.config.Bounds)
	pop := newPopulation(de.config.PopulationSize, nDims)
	for _, member := range pop.members {
		for j, b := range de.config.Bounds {
			member[j] = b[0] + de.rng.Float64()*(b[1]-b[0])
		}
	}
	return pop
}

// makeTrials builds one trial per member using best/1/bin. Escaping
// genes are reflected back into bounds deterministically, so no
// candidate is ever discarded and none escapes the declared domain.
func (de *DifferentialEvolution) makeTrials(pop *population) [][]float64 {
	nDims := len(de.config.Bounds)
	champion := pop.members[pop.bestIndex()]

	trials := make([][]float64, len(pop.members))
	for i, parent := range pop.members {
		r1, r2 := de.pickDonors(i, len(pop.members))
		a, b := pop.members[r1], pop.members[r2]

		trial := make([]float64, nDims)
		jrand := de.rng.Intn(nDims) // at least one gene comes from the donor
		for j := range trial {
			if j == jrand || de.rng.Float64() < de.config.CrossoverRate {
				trial[j] = reflect(champion[j]+de.config.DifferentialWeight*(a[j]-b[j]), de.config.Bounds[j])
			} else {
				trial[j] = parent[j]
			}
		}
		trials[i] = trial
	}
	return trials
}

// pickDonors draws two distinct member indices, both different from i.
func (de *DifferentialEvolution) pickDonors(i, n int) (int, int) {
	r1 := de.rng.Intn(n)
	for r1 == i {
		r1 = de.rng.Intn(n)
	}
	r2 := de.rng.Intn(n)
	for r2 == i || r2 == r1 {
		r2 = de.rng.Intn(n)
	}
	return r1, r2
}

// evaluateInto scores each design into scores[i]. With MaxGoroutines
// below 2 it runs sequentially; otherwise it fans out over a bounded
// goroutine pool. Either way the objective sees exactly the same
// designs, so results are identical.
func (de *DifferentialEvolution) evaluateInto(scores []float64, designs [][]float64) {
	if de.config.MaxGoroutines < 2 {
		for i, d := range designs {
			scores[i] = de.config.Objective(d)
		}
		return
	}

	p := pool.New().WithMaxGoroutines(de.config.MaxGoroutines)
	for i, d := range designs {
		i, d := i, d
		p.Go(func() {
			scores[i] = de.config.Objective(d)
		})
	}
	p.Wait()
}

// reflect folds v back into the closed interval b by mirroring it off
// the violated edge until it lands inside. The fold is deterministic,
// and for a degenerate interval it collapses to the single point.
func reflect(v float64, b [2]float64) float64 {
	lo, hi := b[0], b[1]
	if lo == hi {
		return lo
	}
	for v < lo || v > hi {
		if v < lo {
			v = 2*lo - v
		} else {
			v = 2*hi - v
		}
	}
	return v
}
