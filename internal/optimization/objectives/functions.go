// Package objectives provides the named benchmark objective functions served
// by the optimization API. All functions are minimization problems defined
// for any dimension >= 1 (rosenbrock requires >= 2).
package objectives

import (
	"math"
	"sort"

	"github.com/copyleftdev/TAIGA/internal/optimization"
)

// Sphere is f(x) = sum(x_i^2), minimum 0 at the origin.
func Sphere(x []float64) (float64, error) {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// Rosenbrock is the classic banana function, minimum 0 at (1, ..., 1).
func Rosenbrock(x []float64) (float64, error) {
	if len(x) < 2 {
		return 0, optimization.NewError("rosenbrock requires dimension >= 2").
			WithComponent("objectives")
	}
	var sum float64
	for i := 0; i < len(x)-1; i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum, nil
}

// Rastrigin is highly multimodal, minimum 0 at the origin.
func Rastrigin(x []float64) (float64, error) {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum, nil
}

// Ackley has a nearly flat outer region and a deep hole at the origin,
// minimum 0 there.
func Ackley(x []float64) (float64, error) {
	n := float64(len(x))
	var sumSq, sumCos float64
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E, nil
}

var registry = map[string]optimization.ObjectiveFunction{
	"sphere":     Sphere,
	"rosenbrock": Rosenbrock,
	"rastrigin":  Rastrigin,
	"ackley":     Ackley,
}

// Lookup returns the objective registered under name.
func Lookup(name string) (optimization.ObjectiveFunction, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered objective names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
