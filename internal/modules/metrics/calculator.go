package metrics

import (
	"math"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/returns"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// minRisk floors the risk used in gradients and solver objectives.
const minRisk = 1e-12

// Snapshot is the metric triple of one weight vector.
type Snapshot struct {
	ExpectedReturn float64 `json:"expected_return" msgpack:"expected_return"`
	Risk           float64 `json:"risk" msgpack:"risk"`
	SharpeRatio    float64 `json:"sharpe_ratio" msgpack:"sharpe_ratio"`
	// SharpeDefined is false when risk is zero; SharpeRatio is then 0.
	SharpeDefined bool `json:"sharpe_defined" msgpack:"sharpe_defined"`
}

// Calculator evaluates metrics against one cached Statistics value.
// Σ_t w·r_t equals w·(Σ_t r_t), so the aggregated per-asset vector is computed once.
type Calculator struct {
	stats       *returns.Statistics
	cov         mat.Symmetric
	mu          []float64
	aggregation Aggregation
}

// NewCalculator builds a calculator. An empty aggregation means AggregateSum.
func NewCalculator(stats *returns.Statistics, aggregation Aggregation) (*Calculator, error) {
	if stats == nil {
		return nil, domain.InvalidInputf("nil statistics")
	}
	agg, err := ParseAggregation(string(aggregation))
	if err != nil {
		return nil, err
	}

	series := stats.Series()
	mu := series.ColumnSums()
	if agg == AggregateMean {
		floats.Scale(1/float64(series.Periods()), mu)
	}

	return &Calculator{
		stats:       stats,
		cov:         stats.CovarianceView(),
		mu:          mu,
		aggregation: agg,
	}, nil
}

// Aggregation returns the configured aggregation mode.
func (c *Calculator) Aggregation() Aggregation {
	return c.aggregation
}

// Assets returns the number of assets.
func (c *Calculator) Assets() int {
	return len(c.mu)
}

// AssetReturns returns a copy of the aggregated per-asset returns.
func (c *Calculator) AssetReturns() []float64 {
	out := make([]float64, len(c.mu))
	copy(out, c.mu)
	return out
}

// Covariance returns the covariance matrix the calculator evaluates against.
func (c *Calculator) Covariance() mat.Symmetric {
	return c.cov
}

// ExpectedReturn returns the aggregated expected return of w.
func (c *Calculator) ExpectedReturn(w []float64) (float64, error) {
	if err := c.checkLen(w); err != nil {
		return 0, err
	}
	return floats.Dot(w, c.mu), nil
}

// Risk returns sqrt(wᵀ·Σ·w).
func (c *Calculator) Risk(w []float64) (float64, error) {
	if err := c.checkLen(w); err != nil {
		return 0, err
	}
	return riskOf(w, c.cov), nil
}

// SharpeRatio returns ExpectedReturn / Risk, failing with ErrDivisionByZero on zero risk.
func (c *Calculator) SharpeRatio(w []float64) (float64, error) {
	if err := c.checkLen(w); err != nil {
		return 0, err
	}
	return sharpe(floats.Dot(w, c.mu), riskOf(w, c.cov))
}

// Evaluate returns all three metrics, substituting Sharpe 0 when risk is zero.
func (c *Calculator) Evaluate(w []float64) (Snapshot, error) {
	if err := c.checkLen(w); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		ExpectedReturn: floats.Dot(w, c.mu),
		Risk:           riskOf(w, c.cov),
	}
	if s, err := sharpe(snap.ExpectedReturn, snap.Risk); err == nil {
		snap.SharpeRatio = s
		snap.SharpeDefined = true
	}
	return snap, nil
}

// ExpectedReturnValue is the unchecked form used inside solver objectives.
func (c *Calculator) ExpectedReturnValue(w []float64) float64 {
	return floats.Dot(w, c.mu)
}

// RiskValue is the unchecked form used inside solver objectives.
func (c *Calculator) RiskValue(w []float64) float64 {
	return riskOf(w, c.cov)
}

// SharpeValue is the unchecked form used inside solver objectives; risk is floored at minRisk.
func (c *Calculator) SharpeValue(w []float64) float64 {
	return floats.Dot(w, c.mu) / math.Max(riskOf(w, c.cov), minRisk)
}

// ExpectedReturnGradient writes ∂return/∂w into grad.
func (c *Calculator) ExpectedReturnGradient(grad, w []float64) {
	copy(grad, c.mu)
}

// RiskGradient writes ∂risk/∂w = Σw / risk into grad.
func (c *Calculator) RiskGradient(grad, w []float64) {
	risk := math.Max(riskOf(w, c.cov), minRisk)
	c.sigmaTimes(grad, w)
	floats.Scale(1/risk, grad)
}

// SharpeGradient writes ∂(return/risk)/∂w = μ/risk - return·Σw/risk³ into grad.
func (c *Calculator) SharpeGradient(grad, w []float64) {
	risk := math.Max(riskOf(w, c.cov), minRisk)
	ret := floats.Dot(w, c.mu)
	c.sigmaTimes(grad, w)
	for i := range grad {
		grad[i] = c.mu[i]/risk - ret*grad[i]/(risk*risk*risk)
	}
}

func (c *Calculator) sigmaTimes(dst, w []float64) {
	out := mat.NewVecDense(len(dst), dst)
	out.MulVec(c.cov, mat.NewVecDense(len(w), w))
}

func (c *Calculator) checkLen(w []float64) error {
	if len(w) != len(c.mu) {
		return domain.InvalidInputf("got %d weights for %d assets", len(w), len(c.mu))
	}
	return nil
}
