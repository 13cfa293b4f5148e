package de

import (
	"context"
	"testing"

	"github.com/copyleftdev/TAIGA/internal/optimization"
)

func benchmarkBounds(b *testing.B, dim int) *optimization.Bounds {
	b.Helper()
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -5
		upper[i] = 5
	}
	bounds, err := optimization.NewBounds(lower, upper)
	if err != nil {
		b.Fatal(err)
	}
	return bounds
}

func benchmarkOptimize(b *testing.B, dim, generations int, parallel bool) {
	bounds := benchmarkBounds(b, dim)

	settings := DefaultSettings()
	settings.RandomSeed = 1
	settings.MaxIterations = generations
	settings.MaxStagnantGenerations = generations
	settings.Tolerance = 1e-300
	settings.ParallelEvaluation = parallel
	if !parallel {
		settings.NumWorkers = 1
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		opt, err := New(sphere, bounds, settings, nil)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := opt.Optimize(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkOptimizeSphere2D(b *testing.B)  { benchmarkOptimize(b, 2, 50, false) }
func BenchmarkOptimizeSphere10D(b *testing.B) { benchmarkOptimize(b, 10, 50, false) }
func BenchmarkOptimizeSphere10DParallel(b *testing.B) {
	benchmarkOptimize(b, 10, 50, true)
}

func BenchmarkCacheLookup(b *testing.B) {
	cache := NewSolutionCache(10000, 1e-10)
	solution := []float64{1.5, -2.5, 3.5, -4.5, 5.5}
	cache.Store(solution, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Lookup(solution)
	}
}

func BenchmarkGenerateParams(b *testing.B) {
	p := NewAdaptiveParams(100)
	stream := newRandStream(1, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.GenerateParams(stream.src)
	}
}
