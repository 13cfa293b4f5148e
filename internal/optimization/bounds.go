package optimization

// Bounds is an immutable per-dimension [lower, upper] box constraining the
// search space. Construct it with NewBounds so that every engine can assume
// the invariants hold: equal lengths, positive dimension, lower < upper.
type Bounds struct {
	lower []float64
	upper []float64
}

// NewBounds validates and copies the bound vectors. It fails fast on
// mismatched lengths, non-positive dimension, or any lower >= upper.
func NewBounds(lower, upper []float64) (*Bounds, error) {
	if len(lower) != len(upper) {
		return nil, NewErrorf("lower and upper bounds must have the same dimension, got %d and %d",
			len(lower), len(upper)).WithComponent("bounds")
	}
	if len(lower) == 0 {
		return nil, NewError("search dimension must be positive").WithComponent("bounds")
	}
	for i := range lower {
		if lower[i] >= upper[i] {
			return nil, NewErrorf("dimension %d: lower bound %v must be less than upper bound %v",
				i, lower[i], upper[i]).WithComponent("bounds")
		}
	}
	return &Bounds{
		lower: append([]float64(nil), lower...),
		upper: append([]float64(nil), upper...),
	}, nil
}

// NewBoundsFromPairs builds Bounds from [min, max] pairs.
func NewBoundsFromPairs(pairs [][2]float64) (*Bounds, error) {
	lower := make([]float64, len(pairs))
	upper := make([]float64, len(pairs))
	for i, p := range pairs {
		lower[i] = p[0]
		upper[i] = p[1]
	}
	return NewBounds(lower, upper)
}

// Dim returns the search dimension.
func (b *Bounds) Dim() int { return len(b.lower) }

// Lower returns the lower bound for dimension i.
func (b *Bounds) Lower(i int) float64 { return b.lower[i] }

// Upper returns the upper bound for dimension i.
func (b *Bounds) Upper(i int) float64 { return b.upper[i] }

// Midpoint returns the midpoint of dimension i.
func (b *Bounds) Midpoint(i int) float64 { return (b.lower[i] + b.upper[i]) / 2 }

// Contains reports whether x lies within the box componentwise.
func (b *Bounds) Contains(x []float64) bool {
	if len(x) != len(b.lower) {
		return false
	}
	for i, v := range x {
		if v < b.lower[i] || v > b.upper[i] {
			return false
		}
	}
	return true
}
