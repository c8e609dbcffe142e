// Package aggregate reduces many normalized event curves to one representative
// "average day" per period and assembles the dashboard record.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Grid returns n evenly spaced points covering [0,1], endpoints included.
func Grid(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{0}
	}
	g := make([]float64, n)
	for i := range g {
		g[i] = float64(i) / float64(n-1)
	}
	g[n-1] = 1
	return g
}

// Interp evaluates the piecewise-linear function through (xs, ys) at every
// point of grid. xs must be non-decreasing. Points outside [xs[0], xs[last]]
// take the nearest endpoint value.
func Interp(grid, xs, ys []float64) []float64 {
	out := make([]float64, len(grid))
	n := len(xs)
	if n == 0 || len(ys) != n {
		return out
	}
	for i, x := range grid {
		out[i] = interpAt(x, xs, ys)
	}
	return out
}

func interpAt(x float64, xs, ys []float64) float64 {
	last := len(xs) - 1
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[last] {
		return ys[last]
	}
	j := sort.SearchFloat64s(xs, x)
	if xs[j] == x {
		return ys[j]
	}
	x0, x1 := xs[j-1], xs[j]
	y0, y1 := ys[j-1], ys[j]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func round2All(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = round2(v)
	}
	return out
}
