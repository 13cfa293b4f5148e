package de

import (
	"math/rand/v2"
	"strings"

	"github.com/copyleftdev/TAIGA/internal/optimization"
)

// BoundaryPolicy selects how out-of-box components are repaired.
type BoundaryPolicy int

const (
	// Clip sets a violating component to the nearest bound.
	Clip BoundaryPolicy = iota
	// Reflect mirrors the violation back across the violated bound, then
	// clamps against the opposite bound so double-violations stay legal.
	Reflect
	// Reinitialize redraws the violating component uniformly within its bound.
	Reinitialize
	// Midpoint replaces the violating component with the bound midpoint.
	Midpoint
)

// String returns the policy name accepted by ParseBoundaryPolicy.
func (p BoundaryPolicy) String() string {
	switch p {
	case Clip:
		return "clip"
	case Reflect:
		return "reflect"
	case Reinitialize:
		return "reinitialize"
	case Midpoint:
		return "midpoint"
	default:
		return "unknown"
	}
}

// ParseBoundaryPolicy maps a policy name to its BoundaryPolicy value.
func ParseBoundaryPolicy(name string) (BoundaryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "clip":
		return Clip, nil
	case "reflect", "":
		return Reflect, nil
	case "reinitialize":
		return Reinitialize, nil
	case "midpoint":
		return Midpoint, nil
	default:
		return Reflect, optimization.NewErrorf("unknown boundary policy %q", name).
			WithComponent("boundary")
	}
}

// BoundaryProcessor repairs out-of-box vectors in place according to one
// configured policy. The bound vectors are read-only, so Process is safe to
// call concurrently as long as each caller supplies its own random stream.
type BoundaryProcessor struct {
	policy BoundaryPolicy
	bounds *optimization.Bounds
}

// NewBoundaryProcessor creates a processor for the given box and policy.
func NewBoundaryProcessor(bounds *optimization.Bounds, policy BoundaryPolicy) *BoundaryProcessor {
	return &BoundaryProcessor{policy: policy, bounds: bounds}
}

// Process repairs x in place. Only the Reinitialize policy consumes random
// draws, one per repaired component.
func (bp *BoundaryProcessor) Process(x []float64, rng *rand.Rand) {
	b := bp.bounds
	switch bp.policy {
	case Clip:
		for i := range x {
			x[i] = clamp(x[i], b.Lower(i), b.Upper(i))
		}

	case Reflect:
		for i := range x {
			if x[i] < b.Lower(i) {
				x[i] = b.Lower(i) + (b.Lower(i) - x[i])
				if x[i] > b.Upper(i) {
					x[i] = b.Upper(i)
				}
			} else if x[i] > b.Upper(i) {
				x[i] = b.Upper(i) - (x[i] - b.Upper(i))
				if x[i] < b.Lower(i) {
					x[i] = b.Lower(i)
				}
			}
		}

	case Reinitialize:
		for i := range x {
			if x[i] < b.Lower(i) || x[i] > b.Upper(i) {
				x[i] = b.Lower(i) + rng.Float64()*(b.Upper(i)-b.Lower(i))
			}
		}

	case Midpoint:
		for i := range x {
			if x[i] < b.Lower(i) || x[i] > b.Upper(i) {
				x[i] = b.Midpoint(i)
			}
		}
	}
}
