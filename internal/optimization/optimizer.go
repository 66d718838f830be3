package optimization

import (
	"context"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process
	Optimize(ctx context.Context, config OptimizerConfig) (*OptimizationResult, error)

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetRecords returns the per-generation convergence records
	GetRecords() []GenerationRecord

	// Stop gracefully stops the optimization process
	Stop()
}

// OptimizerConfig contains configuration for the optimizer
type OptimizerConfig struct {
	// Objective function to optimize (minimization convention)
	Objective ObjectiveFunction

	// Bounds for each gene [min, max]
	Bounds [][2]float64

	// Number of candidate designs kept per generation
	PopulationSize int

	// Number of generations to run
	Generations int

	// Random seed for reproducibility
	RandomSeed int64

	// Differential weight applied to the donor difference vector.
	// Zero means use the default.
	DifferentialWeight float64

	// Per-gene probability of inheriting from the donor during
	// crossover. Zero means use the default.
	CrossoverRate float64

	// Maximum number of goroutines used to evaluate trials within a
	// generation. Values below 2 keep evaluation sequential.
	MaxGoroutines int

	// OnGeneration, if set, is invoked after each completed generation
	// with the record for that generation.
	OnGeneration func(GenerationRecord)
}

// ObjectiveFunction defines the function to be optimized. Lower is better.
type ObjectiveFunction func([]float64) float64

// Solution represents a candidate design in the search space
type Solution struct {
	Parameters []float64
	Value      float64
}

// Fitness returns the human-facing score of the solution, where higher
// is better. Internally everything minimizes, so this is the negation.
func (s *Solution) Fitness() float64 {
	return -s.Value
}

// GenerationRecord captures the state of the population at the end of one
// generation. Fitness values are reported in the positive
// (higher-is-better) convention.
type GenerationRecord struct {
	// Generation is the 1-based index of the completed generation.
	Generation int

	// BestFitness is the positive fitness of the generation champion.
	BestFitness float64

	// AverageFitness is the arithmetic mean positive fitness across the
	// whole population.
	AverageFitness float64

	// BestParameters is a copy of the champion's genes.
	BestParameters []float64
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution
	Records      []GenerationRecord
	Generations  int
}
