package optimization

import "math"

// DefaultPenalty is the fitness assigned to infeasible or failed evaluations.
// It is large enough to lose every greedy comparison while staying finite, so
// engine control flow never has to special-case failures.
const DefaultPenalty = 1e12

// SafeObjective wraps a user objective so that the engine only ever observes
// finite fitness values. Errors, panics, NaN and infinities all become the
// penalty value. A non-positive penalty selects DefaultPenalty.
func SafeObjective(fn ObjectiveFunction, penalty float64) func(x []float64) float64 {
	if penalty <= 0 {
		penalty = DefaultPenalty
	}
	return func(x []float64) (fitness float64) {
		defer func() {
			if recover() != nil {
				fitness = penalty
			}
		}()

		value, err := fn(x)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return penalty
		}
		return value
	}
}
