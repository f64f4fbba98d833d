// Package formulas holds small numeric helpers shared by the portfolio modules.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// CalculateReturns converts prices to simple returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]; a zero price yields a zero return.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// QuadraticForm returns wᵀ·Σ·w.
func QuadraticForm(w []float64, sigma mat.Symmetric) float64 {
	v := mat.NewVecDense(len(w), w)
	return mat.Inner(v, sigma, v)
}

// AllFinite reports whether every value is neither NaN nor ±Inf.
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
// The last value is exactly hi.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{lo}
	}
	out := floats.Span(make([]float64, n), lo, hi)
	out[n-1] = hi
	return out
}
