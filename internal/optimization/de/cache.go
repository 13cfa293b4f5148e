package de

import (
	"math"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
)

const (
	defaultCacheSize      = 10000
	defaultCacheTolerance = 1e-10
)

type cacheEntry struct {
	solution []float64
	fitness  float64
	stamp    uint64
}

// SolutionCache is a bounded, thread-safe approximate memoization table
// mapping quantized solution vectors to previously computed fitness values.
// A lookup only counts as a hit when the quantized key matches and the stored
// solution is within tolerance of the query, so hash collisions across
// distinct solutions never produce false hits. The cache is an optimization,
// never a correctness requirement.
type SolutionCache struct {
	mu      sync.Mutex
	entries map[uint64]cacheEntry
	maxSize int

	tolerance float64
	clock     uint64

	hits   atomic.Int64
	misses atomic.Int64
}

// NewSolutionCache creates a cache holding up to maxSize entries, with
// similarity judged at the given Euclidean tolerance. Non-positive arguments
// select the defaults.
func NewSolutionCache(maxSize int, tolerance float64) *SolutionCache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	if tolerance <= 0 {
		tolerance = defaultCacheTolerance
	}
	return &SolutionCache{
		entries:   make(map[uint64]cacheEntry, maxSize),
		maxSize:   maxSize,
		tolerance: tolerance,
	}
}

// hashSolution quantizes each component to the cache tolerance and mixes the
// truncated values into a single key.
func (c *SolutionCache) hashSolution(solution []float64) uint64 {
	var h uint64
	for _, v := range solution {
		q := uint64(int64(v / c.tolerance))
		q *= 0xff51afd7ed558ccd
		q ^= q >> 33
		h ^= q + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	}
	return h
}

// Lookup returns the cached fitness for a solution within tolerance of a
// stored entry, and whether such an entry was found.
func (c *SolutionCache) Lookup(solution []float64) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[c.hashSolution(solution)]; ok {
		if len(entry.solution) == len(solution) &&
			floats.Distance(entry.solution, solution, 2) <= c.tolerance {
			c.hits.Add(1)
			return entry.fitness, true
		}
	}
	c.misses.Add(1)
	return 0, false
}

// Store inserts a solution/fitness pair, evicting the single oldest entry
// when the cache is at capacity.
func (c *SolutionCache) Store(solution []float64, fitness float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		oldestKey := uint64(0)
		oldestStamp := uint64(math.MaxUint64)
		for key, entry := range c.entries {
			if entry.stamp < oldestStamp {
				oldestStamp = entry.stamp
				oldestKey = key
			}
		}
		delete(c.entries, oldestKey)
	}

	c.clock++
	c.entries[c.hashSolution(solution)] = cacheEntry{
		solution: append([]float64(nil), solution...),
		fitness:  fitness,
		stamp:    c.clock,
	}
}

// Clear drops all entries and resets the statistics.
func (c *SolutionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]cacheEntry, c.maxSize)
	c.hits.Store(0)
	c.misses.Store(0)
}

// Len returns the number of cached entries.
func (c *SolutionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counters.
func (c *SolutionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (c *SolutionCache) HitRate() float64 {
	hits, misses := c.Stats()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
