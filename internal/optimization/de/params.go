package de

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	defaultMemorySize = 100

	// Near-zero F produces a degenerate zero-step mutation; such draws are
	// replaced by a uniform draw in [0.1, 0.5].
	minUsableF = 0.01

	strategyDecay        = 0.95
	strategyLearningRate = 0.1
	minStrategyRate      = 0.05
)

// AdaptiveParams tracks recently successful mutation/crossover parameters and
// per-strategy success rates, and samples new (F, CR) pairs and strategies
// for trial individuals. It is not safe for concurrent use; the engine only
// touches it from the single-threaded sections of the generational loop.
type AdaptiveParams struct {
	memorySize   int
	successfulF  []float64
	successfulCR []float64

	meanF  float64
	meanCR float64
	stdF   float64
	stdCR  float64

	strategyRates []float64
}

// NewAdaptiveParams creates a parameter manager with the given success-window
// capacity (values <= 0 select the default of 100).
func NewAdaptiveParams(memorySize int) *AdaptiveParams {
	if memorySize <= 0 {
		memorySize = defaultMemorySize
	}
	rates := make([]float64, numStrategies)
	for i := range rates {
		rates[i] = 1.0 / float64(numStrategies)
	}
	return &AdaptiveParams{
		memorySize:    memorySize,
		meanF:         0.5,
		meanCR:        0.5,
		stdF:          0.1,
		stdCR:         0.1,
		strategyRates: rates,
	}
}

// GenerateParams samples a new (F, CR) pair from normal distributions
// centered at the current means. F is clamped to [0, 2] and CR to [0, 1].
func (p *AdaptiveParams) GenerateParams(src rand.Source) (F, CR float64) {
	F = clamp(distuv.Normal{Mu: p.meanF, Sigma: p.stdF, Src: src}.Rand(), 0, 2)
	CR = clamp(distuv.Normal{Mu: p.meanCR, Sigma: p.stdCR, Src: src}.Rand(), 0, 1)

	if F <= minUsableF {
		F = distuv.Uniform{Min: 0.1, Max: 0.5, Src: src}.Rand()
	}
	return F, CR
}

// SelectStrategy performs roulette-wheel selection over the success-rate
// vector. It falls back to RandOne when the rates cannot form a distribution.
func (p *AdaptiveParams) SelectStrategy(rng *rand.Rand) MutationStrategy {
	var total float64
	for _, r := range p.strategyRates {
		total += r
	}
	if total <= 0 || len(p.strategyRates) == 0 {
		return RandOne
	}

	u := rng.Float64() * total
	var cum float64
	for i, r := range p.strategyRates {
		cum += r
		if u <= cum {
			return MutationStrategy(i)
		}
	}
	return RandOne
}

// AddSuccess appends a successful parameter pair to the bounded windows,
// evicting the oldest entries once capacity is exceeded.
func (p *AdaptiveParams) AddSuccess(F, CR float64, _ MutationStrategy) {
	p.successfulF = append(p.successfulF, F)
	p.successfulCR = append(p.successfulCR, CR)
	if len(p.successfulF) > p.memorySize {
		p.successfulF = p.successfulF[1:]
		p.successfulCR = p.successfulCR[1:]
	}
}

// UpdateMeans recomputes meanF as the Lehmer mean of the successful-F window
// and meanCR as the arithmetic mean of the successful-CR window, then clears
// both windows. The memory is generational, not cumulative.
func (p *AdaptiveParams) UpdateMeans() {
	if len(p.successfulF) == 0 {
		return
	}

	var num, den float64
	for _, f := range p.successfulF {
		num += f * f
		den += f
	}
	if den > 1e-10 {
		p.meanF = num / den
	} else {
		p.meanF = 0.5
	}
	p.meanCR = stat.Mean(p.successfulCR, nil)

	p.meanF = clamp(p.meanF, 0.1, 2.0)
	p.meanCR = clamp(p.meanCR, 0.0, 1.0)

	p.successfulF = p.successfulF[:0]
	p.successfulCR = p.successfulCR[:0]
}

// UpdateStrategyPerformance applies an exponential-moving-average update to
// the strategy's success rate, floored at a small positive minimum so no
// strategy starves out of the roulette.
func (p *AdaptiveParams) UpdateStrategyPerformance(strategy MutationStrategy, success bool) {
	i := int(strategy)
	if i < 0 || i >= len(p.strategyRates) {
		return
	}
	rate := strategyDecay * p.strategyRates[i]
	if success {
		rate += strategyLearningRate
	}
	p.strategyRates[i] = math.Max(rate, minStrategyRate)
}

// Means returns the current (meanF, meanCR) pair.
func (p *AdaptiveParams) Means() (float64, float64) {
	return p.meanF, p.meanCR
}

// StrategyRates returns a copy of the per-strategy success rates.
func (p *AdaptiveParams) StrategyRates() []float64 {
	return append([]float64(nil), p.strategyRates...)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
