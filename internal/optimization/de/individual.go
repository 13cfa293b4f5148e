package de

import "gonum.org/v1/gonum/floats"

// Individual is one candidate solution plus its fitness. Individuals are
// owned exclusively by the container holding them and copied by value (via
// Clone) when transferred between containers.
type Individual struct {
	Solution []float64
	Fitness  float64
	Age      int
}

// Clone returns a deep copy of the individual.
func (ind Individual) Clone() Individual {
	return Individual{
		Solution: append([]float64(nil), ind.Solution...),
		Fitness:  ind.Fitness,
		Age:      ind.Age,
	}
}

// Archive is a bounded FIFO collection of displaced individuals, kept as
// historical diversity material. Capacity is fixed at construction; pushing
// into a full archive evicts the oldest entry.
type Archive struct {
	capacity int
	items    []Individual
}

// NewArchive creates an archive with the given capacity (minimum 1).
func NewArchive(capacity int) *Archive {
	if capacity < 1 {
		capacity = 1
	}
	return &Archive{capacity: capacity, items: make([]Individual, 0, capacity)}
}

// Push appends an individual, evicting the oldest entry at capacity.
func (a *Archive) Push(ind Individual) {
	if len(a.items) >= a.capacity {
		copy(a.items, a.items[1:])
		a.items = a.items[:len(a.items)-1]
	}
	a.items = append(a.items, ind)
}

// Len returns the number of archived individuals.
func (a *Archive) Len() int { return len(a.items) }

// Items exposes the archived individuals, oldest first.
func (a *Archive) Items() []Individual { return a.items }

// meanPairwiseDistance measures population diversity as the mean Euclidean
// distance over all individual pairs.
func meanPairwiseDistance(population []Individual) float64 {
	n := len(population)
	if n < 2 {
		return 0
	}
	var total float64
	var count int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			total += floats.Distance(population[i].Solution, population[j].Solution, 2)
			count++
		}
	}
	return total / float64(count)
}
