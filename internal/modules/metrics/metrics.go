// Package metrics computes expected return, risk and Sharpe ratio for weight vectors.
//
// Expected return aggregates the weighted period returns. Two conventions are
// supported and the choice is always explicit:
//   - AggregateSum: Σ_t w·r_t, the raw sum over every observed period (default)
//   - AggregateMean: the same sum divided by the number of periods
//
// The Sharpe ratio assumes a zero risk-free rate: Sharpe = return / risk.
package metrics

import (
	"fmt"
	"math"
	"strings"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/returns"
	"github.com/falcone-gk/Finance-Instruments/pkg/formulas"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultWeightTolerance bounds |Σw - 1| for a feasible weight vector.
const DefaultWeightTolerance = 1e-6

// Aggregation selects how period returns are combined into one expected return.
type Aggregation string

const (
	AggregateSum  Aggregation = "sum"
	AggregateMean Aggregation = "mean"
)

// ParseAggregation maps a config value to an Aggregation. Empty means AggregateSum.
func ParseAggregation(value string) (Aggregation, error) {
	switch Aggregation(strings.ToLower(strings.TrimSpace(value))) {
	case "", AggregateSum:
		return AggregateSum, nil
	case AggregateMean:
		return AggregateMean, nil
	default:
		return "", domain.InvalidInputf("unknown return aggregation %q", value)
	}
}

// ExpectedReturn returns Σ_t w·r_t over every period of the series.
func ExpectedReturn(weights []float64, series *returns.Series) (float64, error) {
	if series == nil {
		return 0, domain.InvalidInputf("nil return series")
	}
	if len(weights) != series.Assets() {
		return 0, domain.InvalidInputf("got %d weights for %d assets", len(weights), series.Assets())
	}
	return floats.Dot(weights, series.ColumnSums()), nil
}

// Risk returns the portfolio volatility sqrt(wᵀ·Σ·w).
func Risk(weights []float64, cov mat.Symmetric) (float64, error) {
	if cov == nil {
		return 0, domain.InvalidInputf("nil covariance matrix")
	}
	if len(weights) != cov.SymmetricDim() {
		return 0, domain.InvalidInputf("got %d weights for a %dx%d covariance matrix", len(weights), cov.SymmetricDim(), cov.SymmetricDim())
	}
	return riskOf(weights, cov), nil
}

// SharpeRatio returns ExpectedReturn / Risk. A zero-risk portfolio fails with ErrDivisionByZero.
func SharpeRatio(weights []float64, series *returns.Series, cov mat.Symmetric) (float64, error) {
	ret, err := ExpectedReturn(weights, series)
	if err != nil {
		return 0, err
	}
	risk, err := Risk(weights, cov)
	if err != nil {
		return 0, err
	}
	return sharpe(ret, risk)
}

// ValidateWeights checks that every weight is in [0,1] and that they sum to 1 within tol.
func ValidateWeights(weights []float64, tol float64) error {
	if len(weights) == 0 {
		return domain.InvalidInputf("empty weight vector")
	}
	if tol <= 0 {
		tol = DefaultWeightTolerance
	}
	if !formulas.AllFinite(weights) {
		return domain.InvalidInputf("weights contain non-finite values")
	}
	for i, w := range weights {
		if w < 0 || w > 1 {
			return domain.InvalidInputf("weight %d is %g, outside [0,1]", i, w)
		}
	}
	if sum := floats.Sum(weights); math.Abs(sum-1) > tol {
		return domain.InvalidInputf("weights sum to %g, expected 1", sum)
	}
	return nil
}

func riskOf(weights []float64, cov mat.Symmetric) float64 {
	// Round-off can leave a tiny negative variance for PSD matrices.
	return math.Sqrt(math.Max(formulas.QuadraticForm(weights, cov), 0))
}

func sharpe(ret, risk float64) (float64, error) {
	if risk == 0 {
		return 0, fmt.Errorf("sharpe ratio with zero risk: %w", domain.ErrDivisionByZero)
	}
	return ret / risk, nil
}
