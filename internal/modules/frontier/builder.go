// Package frontier builds the min-variance, max-return and max-Sharpe
// portfolios and sweeps the efficient frontier between them.
package frontier

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/metrics"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/optimization"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/returns"
	"github.com/falcone-gk/Finance-Instruments/pkg/formulas"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"
)

// MinResolution is the smallest accepted frontier resolution.
const MinResolution = 2

// Options configures a Builder.
type Options struct {
	Workers int // concurrent frontier solves; 0 means GOMAXPROCS
}

// Builder drives a ConstrainedOptimizer over one set of return statistics.
// Frontiers are cached per resolution until Rebuild or Invalidate.
type Builder struct {
	stats     *returns.Statistics
	calc      *metrics.Calculator
	optimizer optimization.ConstrainedOptimizer
	workers   int
	log       zerolog.Logger

	mu    sync.RWMutex
	cache map[int]*Frontier
	gen   uint64 // bumped by Invalidate; builds from older generations are not cached
	group singleflight.Group
}

// NewBuilder validates its collaborators and returns a Builder.
func NewBuilder(
	stats *returns.Statistics,
	calc *metrics.Calculator,
	optimizer optimization.ConstrainedOptimizer,
	opts Options,
	log zerolog.Logger,
) (*Builder, error) {
	if stats == nil || calc == nil || optimizer == nil {
		return nil, domain.InvalidInputf("frontier builder needs statistics, calculator and optimizer")
	}
	if stats.Assets() != calc.Assets() {
		return nil, domain.InvalidInputf("statistics cover %d assets, calculator %d", stats.Assets(), calc.Assets())
	}
	if opts.Workers < 0 {
		return nil, domain.InvalidInputf("negative worker count %d", opts.Workers)
	}

	workers := opts.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Builder{
		stats:     stats,
		calc:      calc,
		optimizer: optimizer,
		workers:   workers,
		log:       log.With().Str("component", "frontier_builder").Logger(),
		cache:     make(map[int]*Frontier),
	}, nil
}

// Workers returns the size of the sweep worker pool.
func (b *Builder) Workers() int {
	return b.workers
}

// Statistics returns the return statistics the builder was created with.
func (b *Builder) Statistics() *returns.Statistics {
	return b.stats
}

// MinVariancePortfolio minimizes risk subject to Σw = 1 and w ∈ [0,1].
func (b *Builder) MinVariancePortfolio(ctx context.Context) (Point, error) {
	res, err := b.optimizer.Minimize(ctx, b.problem(b.varianceObjective()))
	if err != nil {
		return Point{}, fmt.Errorf("min variance portfolio: %w", err)
	}
	return b.point(res.X)
}

// MaxReturnPortfolio maximizes expected return under the same constraints.
func (b *Builder) MaxReturnPortfolio(ctx context.Context) (Point, error) {
	res, err := optimization.Maximize(ctx, b.optimizer, b.problem(optimization.Objective{
		Func: b.calc.ExpectedReturnValue,
		Grad: b.calc.ExpectedReturnGradient,
	}))
	if err != nil {
		return Point{}, fmt.Errorf("max return portfolio: %w", err)
	}
	return b.point(res.X)
}

// MaxSharpePortfolio maximizes the Sharpe ratio under the same constraints.
// The objective is not convex: the result is a local optimum reached from
// the uniform allocation.
func (b *Builder) MaxSharpePortfolio(ctx context.Context) (Point, error) {
	res, err := optimization.Maximize(ctx, b.optimizer, b.problem(optimization.Objective{
		Func: b.calc.SharpeValue,
		Grad: b.calc.SharpeGradient,
	}))
	if err != nil {
		return Point{}, fmt.Errorf("max sharpe portfolio: %w", err)
	}
	return b.point(res.X)
}

// EfficientFrontier solves resolution evenly spaced target returns between
// the min-variance and max-return portfolios. Each solve minimizes risk
// subject to Σw = 1 and return = target. Solves that fail with a
// convergence error become gaps; any other failure aborts the sweep.
func (b *Builder) EfficientFrontier(ctx context.Context, resolution int) (*Frontier, error) {
	if resolution < MinResolution {
		return nil, domain.InvalidInputf("frontier resolution %d below %d", resolution, MinResolution)
	}

	runID := uuid.NewString()
	log := b.log.With().Str("run_id", runID).Int("resolution", resolution).Logger()
	log.Info().Int("workers", b.workers).Msg("Building efficient frontier")

	minVar, err := b.MinVariancePortfolio(ctx)
	if err != nil {
		return nil, err
	}
	maxRet, err := b.MaxReturnPortfolio(ctx)
	if err != nil {
		return nil, err
	}

	lo, hi := minVar.ExpectedReturn, maxRet.ExpectedReturn
	if hi < lo {
		// Both ends sit within solver tolerance of each other.
		hi = lo
	}
	targets := formulas.Linspace(lo, hi, resolution)

	outcomes, err := b.sweep(ctx, targets, log)
	if err != nil {
		return nil, err
	}

	f := &Frontier{
		RunID:       runID,
		Assets:      b.stats.Series().AssetNames(),
		Points:      make([]Point, 0, resolution),
		MinVariance: minVar,
		MaxReturn:   maxRet,
		Requested:   resolution,
		Gaps:        make([]float64, 0),
	}
	for i, o := range outcomes {
		if o.gap {
			f.Gaps = append(f.Gaps, targets[i])
			continue
		}
		f.Points = append(f.Points, o.point)
	}
	f.Converged = len(f.Points)
	f.Skipped = len(f.Gaps)

	log.Info().
		Int("converged", f.Converged).
		Int("skipped", f.Skipped).
		Float64("min_return", lo).
		Float64("max_return", hi).
		Msg("Efficient frontier built")

	return f, nil
}

// Frontier returns the cached frontier for resolution, building it on a miss.
// Concurrent callers for the same resolution share one build.
func (b *Builder) Frontier(ctx context.Context, resolution int) (*Frontier, error) {
	b.mu.RLock()
	f, ok := b.cache[resolution]
	b.mu.RUnlock()
	if ok {
		return f, nil
	}
	return b.build(ctx, resolution)
}

// Rebuild recomputes the frontier for resolution and replaces the cached copy.
func (b *Builder) Rebuild(ctx context.Context, resolution int) (*Frontier, error) {
	b.mu.Lock()
	b.group.Forget(flightKey(b.gen, resolution))
	delete(b.cache, resolution)
	b.mu.Unlock()
	return b.build(ctx, resolution)
}

// Invalidate drops every cached frontier. Builds already in flight finish
// for their callers but are not written back.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	b.cache = make(map[int]*Frontier)
}

func (b *Builder) build(ctx context.Context, resolution int) (*Frontier, error) {
	b.mu.RLock()
	gen := b.gen
	b.mu.RUnlock()

	v, err, shared := b.group.Do(flightKey(gen, resolution), func() (interface{}, error) {
		b.mu.RLock()
		cached, ok := b.cache[resolution]
		current := b.gen == gen
		b.mu.RUnlock()
		if ok && current {
			return cached, nil
		}

		f, err := b.EfficientFrontier(ctx, resolution)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		if b.gen == gen {
			b.cache[resolution] = f
		}
		b.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		b.log.Debug().Int("resolution", resolution).Msg("Joined in-flight frontier build")
	}
	return v.(*Frontier), nil
}

func flightKey(gen uint64, resolution int) string {
	return strconv.FormatUint(gen, 10) + "/" + strconv.Itoa(resolution)
}

// problem is the common min/max problem: Σw = 1, w ∈ [0,1], uniform start.
func (b *Builder) problem(obj optimization.Objective, extra ...optimization.Constraint) optimization.Problem {
	n := b.calc.Assets()
	equalities := append([]optimization.Constraint{optimization.SumToOne()}, extra...)
	return optimization.Problem{
		Objective:  obj,
		Equalities: equalities,
		Bounds:     optimization.UnitBounds(n),
		Initial:    optimization.UniformWeights(n),
	}
}

// varianceObjective minimizes wᵀΣw, which has the same minimizer as risk
// and stays smooth at zero risk.
func (b *Builder) varianceObjective() optimization.Objective {
	cov := b.calc.Covariance()
	n := b.calc.Assets()
	return optimization.Objective{
		Func: func(w []float64) float64 {
			return formulas.QuadraticForm(w, cov)
		},
		Grad: func(grad, w []float64) {
			dst := mat.NewVecDense(n, grad)
			dst.MulVec(cov, mat.NewVecDense(n, w))
			dst.ScaleVec(2, dst)
		},
	}
}

// targetProblem pins the expected return to target.
func (b *Builder) targetProblem(target float64) optimization.Problem {
	return b.problem(b.varianceObjective(), optimization.Target(
		"target_return",
		b.calc.ExpectedReturnValue,
		b.calc.ExpectedReturnGradient,
		target,
	))
}

func (b *Builder) point(w []float64) (Point, error) {
	snap, err := b.calc.Evaluate(w)
	if err != nil {
		return Point{}, err
	}
	return newPoint(w, snap), nil
}
