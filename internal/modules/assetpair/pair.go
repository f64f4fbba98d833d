// Package assetpair is the closed-form two-asset portfolio: expected yield
// and risk for a fixed weight and correlation, and the risk/return curves
// traced when the weight sweeps from 0 to 1.
package assetpair

import (
	"fmt"
	"math"
	"strings"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/pkg/formulas"
	"gonum.org/v1/gonum/mat"
)

// DefaultCurveSteps is the number of weights sampled per curve.
const DefaultCurveSteps = 200

// Asset is described by its expected return and standard deviation.
type Asset struct {
	Return float64 `json:"return" msgpack:"return"`
	StdDev float64 `json:"std_dev" msgpack:"std_dev"`
}

func (a Asset) validate(name string) error {
	if math.IsNaN(a.Return) || math.IsInf(a.Return, 0) {
		return domain.InvalidInputf("%s return is not finite", name)
	}
	if math.IsNaN(a.StdDev) || math.IsInf(a.StdDev, 0) || a.StdDev < 0 {
		return domain.InvalidInputf("%s standard deviation must be finite and non-negative, got %g", name, a.StdDev)
	}
	return nil
}

// Pair holds weightA in asset A and 1-weightA in asset B.
type Pair struct {
	a, b        Asset
	weightA     float64
	correlation float64
}

// New validates weightA ∈ [0,1] and correlation ∈ [-1,1].
func New(a, b Asset, weightA, correlation float64) (*Pair, error) {
	if err := a.validate("asset A"); err != nil {
		return nil, err
	}
	if err := b.validate("asset B"); err != nil {
		return nil, err
	}
	if math.IsNaN(weightA) || weightA < 0 || weightA > 1 {
		return nil, domain.InvalidInputf("weight of asset A must be in [0, 1], got %g", weightA)
	}
	if err := validateCorrelation(correlation); err != nil {
		return nil, err
	}
	return &Pair{a: a, b: b, weightA: weightA, correlation: correlation}, nil
}

// Weights returns (w_A, w_B).
func (p *Pair) Weights() (float64, float64) {
	return p.weightA, 1 - p.weightA
}

// Covariance is ρ·σ_A·σ_B.
func (p *Pair) Covariance() float64 {
	return p.correlation * p.a.StdDev * p.b.StdDev
}

// ExpectedYield is w_A·r_A + w_B·r_B.
func (p *Pair) ExpectedYield() float64 {
	wa, wb := p.Weights()
	return wa*p.a.Return + wb*p.b.Return
}

// Variance is w_A²σ_A² + w_B²σ_B² + 2·w_A·w_B·cov.
func (p *Pair) Variance() float64 {
	wa, wb := p.Weights()
	cov := p.Covariance()
	sigma := mat.NewSymDense(2, []float64{
		p.a.StdDev * p.a.StdDev, cov,
		cov, p.b.StdDev * p.b.StdDev,
	})
	// ρ = -1 can cancel to a tiny negative number.
	return math.Max(formulas.QuadraticForm([]float64{wa, wb}, sigma), 0)
}

// Risk is the portfolio standard deviation.
func (p *Pair) Risk() float64 {
	return math.Sqrt(p.Variance())
}

// Description renders covariance, yield, variance and standard deviation
// as an aligned two-column table, rounded to 4 decimals.
func (p *Pair) Description() string {
	rows := [][2]string{
		{"Covariance", fmt.Sprintf("%.4f", p.Covariance())},
		{"Expected yield", fmt.Sprintf("%.4f", p.ExpectedYield())},
		{"Variance", fmt.Sprintf("%.4f", p.Variance())},
		{"Standard deviation", fmt.Sprintf("%.4f", p.Risk())},
	}

	width := 0
	for _, r := range rows {
		if len(r[1]) > width {
			width = len(r[1])
		}
	}

	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "%-19s: %*s\n", r[0], width, r[1])
	}
	return sb.String()
}

// Curve is the risk/return path of the pair for one correlation as the
// weight of asset A goes from 0 to 1.
type Curve struct {
	Correlation float64   `json:"correlation" msgpack:"correlation"`
	Weights     []float64 `json:"weights" msgpack:"weights"`
	Returns     []float64 `json:"returns" msgpack:"returns"`
	Risks       []float64 `json:"risks" msgpack:"risks"`
}

// YieldCurves returns one curve per correlation with steps evenly spaced
// weights. steps == 0 uses DefaultCurveSteps.
func (p *Pair) YieldCurves(correlations []float64, steps int) ([]Curve, error) {
	if steps == 0 {
		steps = DefaultCurveSteps
	}
	if steps < 2 {
		return nil, domain.InvalidInputf("curve needs at least 2 steps, got %d", steps)
	}
	for _, rho := range correlations {
		if err := validateCorrelation(rho); err != nil {
			return nil, err
		}
	}

	weights := formulas.Linspace(0, 1, steps)
	curves := make([]Curve, 0, len(correlations))
	for _, rho := range correlations {
		c := Curve{
			Correlation: rho,
			Weights:     append([]float64(nil), weights...),
			Returns:     make([]float64, steps),
			Risks:       make([]float64, steps),
		}
		for i, w := range weights {
			q := Pair{a: p.a, b: p.b, weightA: w, correlation: rho}
			c.Returns[i] = q.ExpectedYield()
			c.Risks[i] = q.Risk()
		}
		curves = append(curves, c)
	}
	return curves, nil
}

func validateCorrelation(rho float64) error {
	if math.IsNaN(rho) || rho < -1 || rho > 1 {
		return domain.InvalidInputf("correlation must be in [-1, 1], got %g", rho)
	}
	return nil
}
