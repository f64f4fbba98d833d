// Package optimization provides a pluggable constrained nonlinear optimizer for weight vectors.
//
// Problems carry an objective, equality constraints g_i(x) = 0, per-dimension
// box bounds and an initial guess. Solutions are local optima: for
// non-convex objectives (Sharpe maximisation) a different starting point may
// yield a different answer. Callers start from UniformWeights.
package optimization

import (
	"context"
)

// ConstrainedOptimizer minimizes an objective under equality constraints and box bounds.
// Implementations return a *ConvergenceError when the budget is exhausted
// before the constraints are satisfied.
type ConstrainedOptimizer interface {
	Minimize(ctx context.Context, problem Problem) (Result, error)
}

// Maximize solves problem as a maximization by minimizing the negated objective.
// Result.F is reported for the original (non-negated) objective.
func Maximize(ctx context.Context, opt ConstrainedOptimizer, problem Problem) (Result, error) {
	f := problem.Objective.Func
	g := problem.Objective.Grad

	negated := problem
	negated.Objective = Objective{
		Func: func(x []float64) float64 { return -f(x) },
	}
	if g != nil {
		negated.Objective.Grad = func(grad, x []float64) {
			g(grad, x)
			for i := range grad {
				grad[i] = -grad[i]
			}
		}
	}
	if f == nil {
		negated.Objective.Func = nil
	}

	res, err := opt.Minimize(ctx, negated)
	if err != nil {
		return res, err
	}
	res.F = -res.F
	return res, nil
}
