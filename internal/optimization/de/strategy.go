// Package de implements a self-adaptive differential evolution engine
// (JADE/SHADE style) for bounded black-box minimization: success-history
// parameter adaptation, multi-strategy mutation selection, configurable
// boundary repair, solution caching, parallel trial construction and
// evaluation, and linear population reduction.
package de

import "fmt"

// MutationStrategy selects the formula used to combine existing individuals
// into a new candidate direction.
type MutationStrategy int

const (
	// RandOne is DE/rand/1: v = x_r1 + F*(x_r2 - x_r3)
	RandOne MutationStrategy = iota
	// BestOne is DE/best/1: v = x_best + F*(x_r1 - x_r2)
	BestOne
	// CurrentToBestOne is DE/current-to-best/1:
	// v = x_i + F*(x_best - x_i) + F*(x_r1 - x_r2)
	CurrentToBestOne
	// RandTwo is DE/rand/2: v = x_r1 + F*(x_r2 - x_r3) + F*(x_r4 - x_r5)
	RandTwo
	// BestTwo is reserved in the success-rate vector but has no dedicated
	// formula; the engine mutates it as RandOne.
	BestTwo

	numStrategies = iota
)

// String returns the conventional DE notation for the strategy.
func (s MutationStrategy) String() string {
	switch s {
	case RandOne:
		return "rand/1"
	case BestOne:
		return "best/1"
	case CurrentToBestOne:
		return "current-to-best/1"
	case RandTwo:
		return "rand/2"
	case BestTwo:
		return "best/2"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// donors returns how many distinct non-target population indices the
// strategy's formula consumes.
func (s MutationStrategy) donors() int {
	switch s {
	case BestOne, CurrentToBestOne:
		return 2
	case RandTwo:
		return 5
	default:
		return 3
	}
}
