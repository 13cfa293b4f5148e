package de

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/TAIGA/internal/optimization"
)

func sphere(x []float64) (float64, error) {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

func symmetricBounds(t *testing.T, dim int, span float64) *optimization.Bounds {
	t.Helper()
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -span
		upper[i] = span
	}
	bounds, err := optimization.NewBounds(lower, upper)
	require.NoError(t, err)
	return bounds
}

// serialSettings pins every source of nondeterminism so that runs with the
// same seed replay exactly.
func serialSettings(seed int64) Settings {
	s := DefaultSettings()
	s.RandomSeed = seed
	s.NumWorkers = 1
	s.ParallelEvaluation = false
	s.EnableCaching = false
	return s
}

func TestNewValidation(t *testing.T) {
	bounds := symmetricBounds(t, 2, 5)

	_, err := New(nil, bounds, DefaultSettings(), nil)
	require.Error(t, err)
	_, ok := optimization.IsOptimizationError(err)
	assert.True(t, ok)

	_, err = New(sphere, nil, DefaultSettings(), nil)
	require.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		wantPop int
	}{
		{"small dimension floors at 30", 2, 30},
		{"scales with dimension", 12, 48},
		{"capped at 200", 80, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settings{}
			s.applyDefaults(tt.dim)
			assert.Equal(t, tt.wantPop, s.PopulationSize)
			assert.Equal(t, 1000, s.MaxIterations)
			assert.Equal(t, 1e-6, s.Tolerance)
			assert.Equal(t, 50, s.MaxStagnantGenerations)
		})
	}
}

func TestOptimizeConvergesOnShiftedSphere(t *testing.T) {
	objective := func(x []float64) (float64, error) {
		return x[0]*x[0] + (x[1]-1)*(x[1]-1), nil
	}
	bounds := symmetricBounds(t, 2, 5)

	settings := serialSettings(7)
	settings.PopulationSize = 40
	settings.MaxIterations = 200
	settings.Tolerance = 1e-6
	settings.MaxStagnantGenerations = 200

	opt, err := New(objective, bounds, settings, nil)
	require.NoError(t, err)

	result, err := opt.Optimize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.BestSolution)

	assert.Less(t, result.BestSolution.Fitness, 1e-4)
	assert.InDelta(t, 0.0, result.BestSolution.Parameters[0], 0.1)
	assert.InDelta(t, 1.0, result.BestSolution.Parameters[1], 0.1)
	assert.True(t, bounds.Contains(result.BestSolution.Parameters))
	assert.Positive(t, result.Stats.Evaluations)
}

func TestTinyPopulationDegradesStrategies(t *testing.T) {
	// With three individuals no strategy has enough distinct donors; every
	// formula must degrade to rand/1 instead of failing.
	bounds := symmetricBounds(t, 2, 5)

	settings := serialSettings(11)
	settings.PopulationSize = 3
	settings.MaxIterations = 30
	settings.MaxStagnantGenerations = 30
	settings.AdaptivePopulation = false

	opt, err := New(sphere, bounds, settings, nil)
	require.NoError(t, err)

	result, err := opt.Optimize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.BestSolution)
	assert.True(t, bounds.Contains(result.BestSolution.Parameters))
}

func TestConstantObjectiveRunsFullBudget(t *testing.T) {
	constant := func(x []float64) (float64, error) { return 1e9, nil }
	bounds := symmetricBounds(t, 2, 5)

	settings := serialSettings(13)
	settings.MaxIterations = 40
	settings.MaxStagnantGenerations = 1000

	opt, err := New(constant, bounds, settings, nil)
	require.NoError(t, err)

	result, err := opt.Optimize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 40, result.Generations)
	assert.False(t, result.Converged)
	assert.Equal(t, 1e9, result.BestSolution.Fitness)
}

func TestStagnationStopsRun(t *testing.T) {
	constant := func(x []float64) (float64, error) { return 1e9, nil }
	bounds := symmetricBounds(t, 2, 5)

	settings := serialSettings(17)
	settings.MaxIterations = 500
	settings.MaxStagnantGenerations = 10

	opt, err := New(constant, bounds, settings, nil)
	require.NoError(t, err)

	result, err := opt.Optimize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, result.Generations)
	assert.False(t, result.Converged)
}

func TestDeterministicWithSeed(t *testing.T) {
	bounds := symmetricBounds(t, 3, 5)

	run := func() *optimization.Result {
		settings := serialSettings(42)
		settings.MaxIterations = 50
		settings.MaxStagnantGenerations = 50

		opt, err := New(sphere, bounds, settings, nil)
		require.NoError(t, err)
		result, err := opt.Optimize(context.Background())
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	assert.Equal(t, first.BestSolution.Parameters, second.BestSolution.Parameters)
	assert.Equal(t, first.BestSolution.Fitness, second.BestSolution.Fitness)
	assert.Equal(t, first.ConvergenceHistory, second.ConvergenceHistory)
	assert.Equal(t, first.Generations, second.Generations)
}

func TestHistoryMonotoneNonIncreasing(t *testing.T) {
	bounds := symmetricBounds(t, 4, 5)

	settings := serialSettings(19)
	settings.MaxIterations = 80
	settings.MaxStagnantGenerations = 80

	opt, err := New(sphere, bounds, settings, nil)
	require.NoError(t, err)

	result, err := opt.Optimize(context.Background())
	require.NoError(t, err)

	history := result.ConvergenceHistory
	require.NotEmpty(t, history)
	for i := 1; i < len(history); i++ {
		assert.LessOrEqual(t, history[i], history[i-1],
			"best fitness must never regress at generation %d", i)
	}
	assert.Equal(t, history, opt.History())
	assert.Equal(t, len(history), opt.Generation())
}

func TestBestStaysWithinAsymmetricBounds(t *testing.T) {
	bounds, err := optimization.NewBounds([]float64{1, 3}, []float64{2, 4})
	require.NoError(t, err)

	settings := serialSettings(23)
	settings.MaxIterations = 60
	settings.MaxStagnantGenerations = 60

	opt, nerr := New(sphere, bounds, settings, nil)
	require.NoError(t, nerr)

	result, oerr := opt.Optimize(context.Background())
	require.NoError(t, oerr)

	assert.True(t, bounds.Contains(result.BestSolution.Parameters))
	// The constrained optimum is the corner nearest the origin.
	assert.InDelta(t, 1.0, result.BestSolution.Parameters[0], 0.05)
	assert.InDelta(t, 3.0, result.BestSolution.Parameters[1], 0.05)
}

func TestFailingObjectiveGetsPenalized(t *testing.T) {
	failing := func(x []float64) (float64, error) {
		if x[0] > 0 {
			panic("objective blew up")
		}
		return x[0] * x[0], nil
	}
	bounds := symmetricBounds(t, 1, 5)

	settings := serialSettings(29)
	settings.MaxIterations = 40
	settings.MaxStagnantGenerations = 40

	opt, err := New(failing, bounds, settings, nil)
	require.NoError(t, err)

	result, oerr := opt.Optimize(context.Background())
	require.NoError(t, oerr)

	// Failures never win selection, so the best individual is a feasible one.
	assert.Less(t, result.BestSolution.Fitness, optimization.DefaultPenalty)
	assert.LessOrEqual(t, result.BestSolution.Parameters[0], 0.0)
}

func TestStopBeforeRun(t *testing.T) {
	bounds := symmetricBounds(t, 2, 5)
	opt, err := New(sphere, bounds, serialSettings(31), nil)
	require.NoError(t, err)

	opt.Stop()
	result, oerr := opt.Optimize(context.Background())
	require.NoError(t, oerr)

	assert.Zero(t, result.Generations)
	assert.NotNil(t, result.BestSolution, "the initial population is still scored")
	assert.Empty(t, result.ConvergenceHistory)
}

func TestOptimizeHonorsContext(t *testing.T) {
	bounds := symmetricBounds(t, 2, 5)
	opt, err := New(sphere, bounds, serialSettings(37), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, oerr := opt.Optimize(ctx)
	assert.Nil(t, result)
	assert.ErrorIs(t, oerr, context.Canceled)
}

func TestAdaptivePopulationShrinks(t *testing.T) {
	bounds := symmetricBounds(t, 2, 5)

	settings := serialSettings(41)
	settings.PopulationSize = 60
	settings.MaxIterations = 100
	settings.MaxStagnantGenerations = 1000
	settings.Tolerance = 1e-300
	settings.AdaptivePopulation = true

	opt, err := New(sphere, bounds, settings, nil)
	require.NoError(t, err)

	_, oerr := opt.Optimize(context.Background())
	require.NoError(t, oerr)

	assert.Equal(t, 10, len(opt.population),
		"population must shrink linearly to max(10, dimension)")
}

func TestCachingReducesEvaluations(t *testing.T) {
	bounds := symmetricBounds(t, 2, 5)

	settings := serialSettings(43)
	settings.MaxIterations = 120
	settings.MaxStagnantGenerations = 1000
	settings.Tolerance = 1e-300
	settings.EnableCaching = true
	settings.CacheTolerance = 1e-3

	opt, err := New(sphere, bounds, settings, nil)
	require.NoError(t, err)

	result, oerr := opt.Optimize(context.Background())
	require.NoError(t, oerr)

	hits := result.Stats.CacheHits
	misses := result.Stats.CacheMisses
	assert.Equal(t, uint64(misses), result.Stats.Evaluations,
		"every miss costs exactly one objective call")
	assert.GreaterOrEqual(t, hits, int64(0))
	assert.InDelta(t, float64(hits)/float64(hits+misses), result.Stats.HitRate(), 1e-12)
}

func TestParallelRunMatchesBounds(t *testing.T) {
	bounds := symmetricBounds(t, 5, 5)

	settings := DefaultSettings()
	settings.RandomSeed = 47
	settings.NumWorkers = 4
	settings.MaxIterations = 60
	settings.MaxStagnantGenerations = 60

	opt, err := New(sphere, bounds, settings, nil)
	require.NoError(t, err)

	result, oerr := opt.Optimize(context.Background())
	require.NoError(t, oerr)
	assert.True(t, bounds.Contains(result.BestSolution.Parameters))
	assert.Less(t, result.BestSolution.Fitness, 25.0)
}

func TestStrategyMetadata(t *testing.T) {
	tests := []struct {
		strategy MutationStrategy
		name     string
		donors   int
	}{
		{RandOne, "rand/1", 3},
		{BestOne, "best/1", 2},
		{CurrentToBestOne, "current-to-best/1", 2},
		{RandTwo, "rand/2", 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.strategy.String())
		assert.Equal(t, tt.donors, tt.strategy.donors())
	}
}
