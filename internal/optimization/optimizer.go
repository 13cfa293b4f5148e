package optimization

import (
	"context"
	"time"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process until convergence or budget exhaustion
	Optimize(ctx context.Context) (*Result, error)

	// Best returns the best solution found so far
	Best() *Solution

	// History returns the per-generation best-fitness history
	History() []float64

	// Stop requests a graceful stop at the next generation boundary
	Stop()
}

// ObjectiveFunction defines the function to be minimized. It receives a
// vector guaranteed to lie within the configured bounds and should return a
// finite value (lower is better). Errors and non-finite values are converted
// to a penalty fitness by SafeObjective before they reach an engine.
type ObjectiveFunction func(x []float64) (float64, error)

// Solution represents a point in the search space together with its fitness
type Solution struct {
	Parameters []float64
	Fitness    float64
}

// EvalStats collects evaluation and cache statistics for a run
type EvalStats struct {
	Evaluations uint64
	CacheHits   int64
	CacheMisses int64
}

// HitRate returns the fraction of lookups served from the cache
func (s EvalStats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Result contains the outcome of an optimization run. It is created once at
// the end of a run and never mutated afterwards.
type Result struct {
	BestSolution *Solution
	Generations  int
	Duration     time.Duration
	Converged    bool

	// ConvergenceHistory holds the best fitness recorded after each generation
	ConvergenceHistory []float64

	Stats EvalStats
}
