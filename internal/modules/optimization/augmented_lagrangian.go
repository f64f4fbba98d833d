package optimization

import (
	"context"
	"errors"
	"math"

	"github.com/falcone-gk/Finance-Instruments/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
)

// maxPenalty caps the penalty weight to keep the inner problems conditioned.
const maxPenalty = 1e10

// AugmentedLagrangian solves equality-constrained problems with box bounds.
//
// Bounds are exact: each variable is written x = lo + (hi-lo)·sin²(y) and the
// inner gonum solve runs over unconstrained y. Equalities are handled by
// augmented Lagrangian outer iterations
//
//	L(y) = f(x) + Σ λ_i g_i(x) + μ/2 Σ g_i(x)²
//
// with λ_i += μ g_i after every inner solve and μ growing while the
// violation stalls. It is safe for concurrent use.
type AugmentedLagrangian struct {
	settings Settings
	log      zerolog.Logger
}

// NewAugmentedLagrangian validates settings (zero fields take defaults).
func NewAugmentedLagrangian(settings Settings, log zerolog.Logger) (*AugmentedLagrangian, error) {
	s, err := settings.withDefaults()
	if err != nil {
		return nil, err
	}
	return &AugmentedLagrangian{
		settings: s,
		log:      log.With().Str("component", "augmented_lagrangian").Logger(),
	}, nil
}

// Settings returns the effective settings.
func (al *AugmentedLagrangian) Settings() Settings {
	return al.settings
}

// Minimize implements ConstrainedOptimizer.
func (al *AugmentedLagrangian) Minimize(ctx context.Context, problem Problem) (Result, error) {
	p, err := problem.validate()
	if err != nil {
		return Result{}, err
	}

	if al.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, al.settings.Timeout)
		defer cancel()
	}

	tr := newBoxTransform(p.Bounds)
	y := tr.toY(p.Initial)
	m := len(p.Equalities)
	lambda := make([]float64, m)
	mu := al.settings.InitialPenalty
	prevViolation := math.Inf(1)
	iterations := 0

	for outer := 1; outer <= al.settings.MaxOuterIterations; outer++ {
		if err := ctx.Err(); err != nil {
			return Result{}, &ConvergenceError{Reason: "solve cancelled", Iterations: iterations, Violation: prevViolation, Cause: err}
		}

		inner := al.innerProblem(ctx, p, tr, lambda, mu)
		yNext, innerIters, err := al.solveInner(ctx, inner, y)
		iterations += innerIters
		if err != nil {
			return Result{}, &ConvergenceError{Reason: "inner solve failed", Iterations: iterations, Violation: prevViolation, Cause: err}
		}
		y = yNext

		x := tr.toX(y)
		violation := maxViolation(p.Equalities, x)

		al.log.Debug().
			Int("outer", outer).
			Int("iterations", iterations).
			Float64("violation", violation).
			Float64("penalty", mu).
			Msg("Augmented Lagrangian iteration")

		if violation <= al.settings.ConstraintTolerance {
			return Result{
				X:               x,
				F:               p.Objective.Func(x),
				MaxViolation:    violation,
				Iterations:      iterations,
				OuterIterations: outer,
			}, nil
		}
		if math.IsNaN(violation) {
			return Result{}, &ConvergenceError{Reason: "constraint evaluated to NaN", Iterations: iterations, Violation: violation}
		}

		for i, c := range p.Equalities {
			lambda[i] += mu * c.Func(x)
		}
		if violation > 0.25*prevViolation {
			mu = math.Min(mu*al.settings.PenaltyGrowth, maxPenalty)
		}
		prevViolation = violation
	}

	return Result{}, &ConvergenceError{
		Reason:     "constraint tolerance not met",
		Iterations: iterations,
		Violation:  prevViolation,
	}
}

// innerProblem builds the unconstrained augmented Lagrangian over y.
func (al *AugmentedLagrangian) innerProblem(ctx context.Context, p Problem, tr boxTransform, lambda []float64, mu float64) optimize.Problem {
	n := len(p.Initial)
	return optimize.Problem{
		Func: func(y []float64) float64 {
			x := tr.toX(y)
			v := p.Objective.Func(x)
			for i, c := range p.Equalities {
				g := c.Func(x)
				v += lambda[i]*g + 0.5*mu*g*g
			}
			return v
		},
		Grad: func(grad, y []float64) {
			x := tr.toX(y)
			p.Objective.Grad(grad, x)
			cg := make([]float64, n)
			for i, c := range p.Equalities {
				g := c.Func(x)
				c.Grad(cg, x)
				scale := lambda[i] + mu*g
				for j := range grad {
					grad[j] += scale * cg[j]
				}
			}
			tr.chain(grad, y)
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
}

// solveInner runs the configured method, falling back to Nelder-Mead when it fails.
func (al *AugmentedLagrangian) solveInner(ctx context.Context, problem optimize.Problem, y0 []float64) ([]float64, int, error) {
	settings := &optimize.Settings{
		GradientThreshold: al.settings.GradientThreshold,
		MajorIterations:   al.settings.MaxIterations,
	}

	result, err := optimize.Minimize(problem, y0, settings, newMethod(al.settings.Method))
	iters := 0
	if result != nil {
		iters = result.Stats.MajorIterations
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, iters, ctxErr
	}
	if err == nil && usable(result) {
		return result.X, iters, nil
	}

	if al.settings.Method == MethodNelderMead {
		if usable(result) {
			return result.X, iters, nil
		}
		return nil, iters, errNoUsableLocation(err)
	}

	al.log.Debug().Err(err).Str("method", string(al.settings.Method)).Msg("Inner solve failed, retrying with Nelder-Mead")

	fallback, fbErr := optimize.Minimize(problem, y0, settings, &optimize.NelderMead{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, iters, ctxErr
	}
	if fallback != nil {
		iters += fallback.Stats.MajorIterations
	}

	// Line-search failures near the optimum still return the best location found.
	switch {
	case usable(result) && usable(fallback):
		if fallback.F < result.F {
			return fallback.X, iters, nil
		}
		return result.X, iters, nil
	case usable(fallback):
		return fallback.X, iters, nil
	case usable(result):
		return result.X, iters, nil
	}
	if fbErr == nil {
		fbErr = err
	}
	return nil, iters, errNoUsableLocation(fbErr)
}

func usable(r *optimize.Result) bool {
	return r != nil && len(r.X) > 0 && formulas.AllFinite(r.X) && !math.IsNaN(r.F) && !math.IsInf(r.F, 0)
}

func errNoUsableLocation(cause error) error {
	if cause == nil {
		return errors.New("no finite location found")
	}
	return cause
}

// boxTransform maps unconstrained y to x = lo + (hi-lo)·sin²(y).
type boxTransform struct {
	lo    []float64
	width []float64
}

func newBoxTransform(bounds []Bound) boxTransform {
	tr := boxTransform{
		lo:    make([]float64, len(bounds)),
		width: make([]float64, len(bounds)),
	}
	for i, b := range bounds {
		tr.lo[i] = b.Lower
		tr.width[i] = b.Upper - b.Lower
	}
	return tr
}

func (tr boxTransform) toX(y []float64) []float64 {
	x := make([]float64, len(y))
	for i, v := range y {
		s := math.Sin(v)
		x[i] = tr.lo[i] + tr.width[i]*s*s
	}
	return x
}

// toY inverts toX for x inside the bounds. Points exactly on a bound are
// nudged inside, since dx/dy vanishes there and the solver could not move them.
func (tr boxTransform) toY(x []float64) []float64 {
	const edge = 1e-10
	y := make([]float64, len(x))
	for i, v := range x {
		if tr.width[i] == 0 {
			continue
		}
		r := (v - tr.lo[i]) / tr.width[i]
		y[i] = math.Asin(math.Sqrt(math.Max(edge, math.Min(1-edge, r))))
	}
	return y
}

// chain converts ∂L/∂x in grad into ∂L/∂y in place: dx/dy = (hi-lo)·sin(2y).
func (tr boxTransform) chain(grad, y []float64) {
	for i := range grad {
		grad[i] *= tr.width[i] * math.Sin(2*y[i])
	}
}
