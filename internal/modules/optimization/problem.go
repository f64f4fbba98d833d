package optimization

import (
	"math"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/pkg/formulas"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

// Func evaluates a scalar function at x.
type Func func(x []float64) float64

// GradFunc writes the gradient at x into grad.
type GradFunc func(grad, x []float64)

// Objective is the function to minimize. A nil Grad is replaced by central finite differences.
type Objective struct {
	Func Func
	Grad GradFunc
}

// Constraint is an equality constraint Func(x) = 0. A nil Grad uses finite differences.
type Constraint struct {
	Name string
	Func Func
	Grad GradFunc
}

// Bound is a closed interval [Lower, Upper] for one variable.
type Bound struct {
	Lower float64
	Upper float64
}

// Problem is one constrained minimization.
type Problem struct {
	Objective  Objective
	Equalities []Constraint
	Bounds     []Bound
	Initial    []float64
}

// Result is a locally optimal solution.
type Result struct {
	X               []float64
	F               float64
	MaxViolation    float64
	Iterations      int
	OuterIterations int
}

// UniformWeights returns the allocation [1/n, ..., 1/n].
func UniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// UnitBounds returns n copies of [0, 1] (no short selling, no leverage).
func UnitBounds(n int) []Bound {
	b := make([]Bound, n)
	for i := range b {
		b[i] = Bound{Lower: 0, Upper: 1}
	}
	return b
}

// SumToOne is the budget constraint Σx - 1 = 0.
func SumToOne() Constraint {
	return Constraint{
		Name: "budget",
		Func: func(x []float64) float64 { return floats.Sum(x) - 1 },
		Grad: func(grad, x []float64) {
			for i := range grad {
				grad[i] = 1
			}
		},
	}
}

// Target is the constraint f(x) - target = 0 for a function with a known gradient.
func Target(name string, f Func, grad GradFunc, target float64) Constraint {
	return Constraint{
		Name: name,
		Func: func(x []float64) float64 { return f(x) - target },
		Grad: grad,
	}
}

// validate checks shapes and fills missing gradients. The returned problem is safe to mutate.
func (p Problem) validate() (Problem, error) {
	n := len(p.Initial)
	if n == 0 {
		return p, domain.InvalidInputf("empty initial guess")
	}
	if p.Objective.Func == nil {
		return p, domain.InvalidInputf("nil objective function")
	}
	if len(p.Bounds) != n {
		return p, domain.InvalidInputf("got %d bounds for %d variables", len(p.Bounds), n)
	}
	if !formulas.AllFinite(p.Initial) {
		return p, domain.InvalidInputf("initial guess contains non-finite values")
	}
	for i, b := range p.Bounds {
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || math.IsInf(b.Lower, 0) || math.IsInf(b.Upper, 0) {
			return p, domain.InvalidInputf("bound %d is not finite", i)
		}
		if b.Lower > b.Upper {
			return p, domain.InvalidInputf("bound %d has lower %g > upper %g", i, b.Lower, b.Upper)
		}
	}

	out := p
	out.Initial = projectToBounds(p.Initial, p.Bounds)
	if out.Objective.Grad == nil {
		out.Objective.Grad = numericGradient(out.Objective.Func)
	}
	out.Equalities = make([]Constraint, len(p.Equalities))
	for i, c := range p.Equalities {
		if c.Func == nil {
			return p, domain.InvalidInputf("constraint %d (%s) has nil function", i, c.Name)
		}
		if c.Grad == nil {
			c.Grad = numericGradient(c.Func)
		}
		out.Equalities[i] = c
	}
	return out, nil
}

// projectToBounds clamps each coordinate into its bound.
func projectToBounds(x []float64, bounds []Bound) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(bounds[i].Lower, math.Min(bounds[i].Upper, x[i]))
	}
	return proj
}

func numericGradient(f Func) GradFunc {
	settings := &fd.Settings{Formula: fd.Central}
	return func(grad, x []float64) {
		fd.Gradient(grad, f, x, settings)
	}
}

// maxViolation returns max_i |g_i(x)|.
func maxViolation(constraints []Constraint, x []float64) float64 {
	var worst float64
	for _, c := range constraints {
		if v := math.Abs(c.Func(x)); v > worst || math.IsNaN(v) {
			worst = v
		}
	}
	return worst
}
