package de

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	cache := NewSolutionCache(16, 1e-6)

	solution := []float64{1.2500005, -3.5, 0.75}
	cache.Store(solution, 42.5)

	fitness, ok := cache.Lookup(solution)
	require.True(t, ok)
	assert.Equal(t, 42.5, fitness)

	// A query within tolerance of the stored solution is still a hit. The
	// perturbed component stays inside its quantization cell.
	fitness, ok = cache.Lookup([]float64{1.2500005 + 1e-9, -3.5, 0.75})
	require.True(t, ok)
	assert.Equal(t, 42.5, fitness)
}

func TestCacheMissBeyondTolerance(t *testing.T) {
	cache := NewSolutionCache(16, 1e-6)
	cache.Store([]float64{1, 2}, 7)

	_, ok := cache.Lookup([]float64{1.1, 2})
	assert.False(t, ok)

	_, ok = cache.Lookup([]float64{1, 2, 3})
	assert.False(t, ok, "dimension mismatch can never hit")
}

func TestCacheStoreMutationIsolation(t *testing.T) {
	cache := NewSolutionCache(16, 1e-6)

	solution := []float64{5, 6}
	cache.Store(solution, 1)
	solution[0] = 999

	fitness, ok := cache.Lookup([]float64{5, 6})
	require.True(t, ok)
	assert.Equal(t, 1.0, fitness)
}

func TestCacheEvictsOldest(t *testing.T) {
	cache := NewSolutionCache(2, 1e-6)

	cache.Store([]float64{1, 1}, 1)
	cache.Store([]float64{2, 2}, 2)
	cache.Store([]float64{3, 3}, 3)

	assert.Equal(t, 2, cache.Len())

	_, ok := cache.Lookup([]float64{1, 1})
	assert.False(t, ok, "oldest entry must have been evicted")
	_, ok = cache.Lookup([]float64{2, 2})
	assert.True(t, ok)
	_, ok = cache.Lookup([]float64{3, 3})
	assert.True(t, ok)
}

func TestCacheStatsAndClear(t *testing.T) {
	cache := NewSolutionCache(16, 1e-6)
	cache.Store([]float64{1}, 1)

	cache.Lookup([]float64{1})
	cache.Lookup([]float64{2})
	cache.Lookup([]float64{3})

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.InDelta(t, 1.0/3.0, cache.HitRate(), 1e-12)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
	hits, misses = cache.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
	assert.Zero(t, cache.HitRate())
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewSolutionCache(128, 1e-6)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				x := []float64{float64(w), float64(i % 32)}
				cache.Store(x, float64(i))
				cache.Lookup(x)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 128)
	hits, misses := cache.Stats()
	assert.Equal(t, int64(8*200), hits+misses)
}
