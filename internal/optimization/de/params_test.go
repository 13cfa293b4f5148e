package de

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdaptiveParamsDefaults(t *testing.T) {
	p := NewAdaptiveParams(0)

	meanF, meanCR := p.Means()
	assert.Equal(t, 0.5, meanF)
	assert.Equal(t, 0.5, meanCR)

	rates := p.StrategyRates()
	require.Len(t, rates, numStrategies)
	for _, r := range rates {
		assert.InDelta(t, 1.0/float64(numStrategies), r, 1e-12)
	}
}

func TestGenerateParamsRanges(t *testing.T) {
	p := NewAdaptiveParams(100)
	src := rand.NewPCG(1, 2)

	for i := 0; i < 2000; i++ {
		F, CR := p.GenerateParams(src)
		assert.Greater(t, F, minUsableF, "degenerate F must be redrawn")
		assert.LessOrEqual(t, F, 2.0)
		assert.GreaterOrEqual(t, CR, 0.0)
		assert.LessOrEqual(t, CR, 1.0)
	}
}

func TestGenerateParamsRedrawsNearZeroF(t *testing.T) {
	// Force the normal draw below the usable floor so every sample takes the
	// uniform fallback path.
	p := NewAdaptiveParams(100)
	p.meanF = -5.0
	src := rand.NewPCG(3, 4)

	for i := 0; i < 500; i++ {
		F, _ := p.GenerateParams(src)
		assert.GreaterOrEqual(t, F, 0.1)
		assert.LessOrEqual(t, F, 0.5)
	}
}

func TestAddSuccessEvictsOldest(t *testing.T) {
	p := NewAdaptiveParams(3)

	pairs := [][2]float64{{0.4, 0.2}, {0.5, 0.4}, {0.6, 0.6}, {0.7, 0.8}, {0.8, 1.0}}
	for _, pr := range pairs {
		p.AddSuccess(pr[0], pr[1], RandOne)
	}
	require.Len(t, p.successfulF, 3)

	p.UpdateMeans()

	// Lehmer mean over the surviving window {0.6, 0.7, 0.8}.
	meanF, meanCR := p.Means()
	assert.InDelta(t, (0.36+0.49+0.64)/(0.6+0.7+0.8), meanF, 1e-12)
	assert.InDelta(t, 0.8, meanCR, 1e-12)
}

func TestUpdateMeansClearsWindows(t *testing.T) {
	p := NewAdaptiveParams(10)
	p.AddSuccess(0.9, 0.9, RandOne)
	p.UpdateMeans()

	meanF, meanCR := p.Means()
	assert.Empty(t, p.successfulF)
	assert.Empty(t, p.successfulCR)

	// A second update with an empty window must not move the means.
	p.UpdateMeans()
	gotF, gotCR := p.Means()
	assert.Equal(t, meanF, gotF)
	assert.Equal(t, meanCR, gotCR)
}

func TestUpdateMeansDegenerateWindow(t *testing.T) {
	p := NewAdaptiveParams(10)
	p.AddSuccess(0, 0.3, RandOne)
	p.AddSuccess(0, 0.5, RandOne)
	p.UpdateMeans()

	meanF, meanCR := p.Means()
	assert.Equal(t, 0.5, meanF, "zero-sum window falls back to the neutral mean")
	assert.InDelta(t, 0.4, meanCR, 1e-12)
}

func TestUpdateMeansClampsF(t *testing.T) {
	p := NewAdaptiveParams(10)
	p.AddSuccess(1.9, 0.5, RandOne)
	p.AddSuccess(2.0, 0.5, RandOne)
	p.UpdateMeans()

	// Lehmer mean of large values exceeds 2.0 only slightly; either way the
	// result must stay inside [0.1, 2.0].
	meanF, _ := p.Means()
	assert.GreaterOrEqual(t, meanF, 0.1)
	assert.LessOrEqual(t, meanF, 2.0)
}

func TestSelectStrategyRouletteBias(t *testing.T) {
	p := NewAdaptiveParams(10)
	rng := rand.New(rand.NewPCG(5, 6))

	p.strategyRates = []float64{1, 0, 0, 0, 0}
	for i := 0; i < 200; i++ {
		assert.Equal(t, RandOne, p.SelectStrategy(rng))
	}

	p.strategyRates = []float64{0, 0, 0, 0, 1}
	hits := 0
	for i := 0; i < 200; i++ {
		if p.SelectStrategy(rng) == BestTwo {
			hits++
		}
	}
	assert.GreaterOrEqual(t, hits, 199, "mass concentrated on one strategy must dominate selection")
}

func TestSelectStrategyFallback(t *testing.T) {
	p := NewAdaptiveParams(10)
	p.strategyRates = []float64{0, 0, 0, 0, 0}
	rng := rand.New(rand.NewPCG(7, 8))
	assert.Equal(t, RandOne, p.SelectStrategy(rng))
}

func TestUpdateStrategyPerformance(t *testing.T) {
	p := NewAdaptiveParams(10)

	before := p.StrategyRates()[RandOne]
	p.UpdateStrategyPerformance(RandOne, true)
	after := p.StrategyRates()[RandOne]
	assert.InDelta(t, strategyDecay*before+strategyLearningRate, after, 1e-12)
	assert.Greater(t, after, before)

	for i := 0; i < 200; i++ {
		p.UpdateStrategyPerformance(BestOne, false)
	}
	assert.Equal(t, minStrategyRate, p.StrategyRates()[BestOne],
		"repeated failures must floor out, not starve the strategy")

	// Out-of-range strategies are ignored.
	p.UpdateStrategyPerformance(MutationStrategy(99), true)
	assert.Len(t, p.StrategyRates(), numStrategies)
}
