package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/returns"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testSeries(t *testing.T) *returns.Series {
	t.Helper()
	s, err := returns.NewSeries([][]float64{
		{0.01, 0.04},
		{0.03, -0.02},
		{-0.01, 0.05},
		{0.02, 0.01},
	}, []string{"A", "B"})
	require.NoError(t, err)
	return s
}

func TestExpectedReturn_SumsAllPeriods(t *testing.T) {
	s := testSeries(t)
	w := []float64{0.25, 0.75}

	got, err := ExpectedReturn(w, s)
	require.NoError(t, err)

	var want float64
	for p := 0; p < s.Periods(); p++ {
		row := s.Row(p)
		want += w[0]*row[0] + w[1]*row[1]
	}
	assert.InDelta(t, want, got, 1e-15)
	// Column sums are 0.05 and 0.08
	assert.InDelta(t, 0.25*0.05+0.75*0.08, got, 1e-15)
}

func TestRisk_MatchesQuadraticForm(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{
		0.0144, -0.036,
		-0.036, 0.09,
	})
	tests := []struct {
		name    string
		weights []float64
	}{
		{"equal", []float64{0.5, 0.5}},
		{"all in A", []float64{1, 0}},
		{"all in B", []float64{0, 1}},
		{"tilted", []float64{0.3, 0.7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.weights
			direct := math.Sqrt(w[0]*w[0]*0.0144 + 2*w[0]*w[1]*(-0.036) + w[1]*w[1]*0.09)

			got, err := Risk(w, cov)
			require.NoError(t, err)
			assert.InDelta(t, direct, got, 1e-12)
		})
	}
}

func TestRisk_NegativeRoundOffClampsToZero(t *testing.T) {
	// Perfectly negatively correlated assets with the zero-variance mix.
	cov := mat.NewSymDense(2, []float64{
		0.0144, -0.036,
		-0.036, 0.09,
	})
	w := []float64{0.3 / 0.42, 0.12 / 0.42}

	got, err := Risk(w, cov)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got))
	assert.InDelta(t, 0, got, 1e-8)
}

func TestRisk_ShapeMismatch(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	_, err := Risk([]float64{1}, cov)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = Risk([]float64{1, 0}, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSharpeRatio(t *testing.T) {
	s := testSeries(t)
	cov, err := returns.ComputeCovariance(s)
	require.NoError(t, err)
	w := []float64{0.5, 0.5}

	got, err := SharpeRatio(w, s, cov)
	require.NoError(t, err)

	ret, _ := ExpectedReturn(w, s)
	risk, _ := Risk(w, cov)
	assert.InDelta(t, ret/risk, got, 1e-12)
}

func TestSharpeRatio_ZeroRisk(t *testing.T) {
	s := testSeries(t)
	zero := mat.NewSymDense(2, nil)

	_, err := SharpeRatio([]float64{0.5, 0.5}, s, zero)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDivisionByZero))
	assert.True(t, errors.Is(err, domain.ErrDegenerateInput))
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		wantErr bool
	}{
		{"feasible", []float64{0.2, 0.3, 0.5}, false},
		{"within tolerance", []float64{0.5, 0.5 + 5e-7}, false},
		{"empty", nil, true},
		{"negative", []float64{-0.1, 1.1}, true},
		{"sum off", []float64{0.5, 0.4}, true},
		{"NaN", []float64{math.NaN(), 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(tt.weights, 0)
			if tt.wantErr {
				assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAggregation(t *testing.T) {
	agg, err := ParseAggregation("")
	require.NoError(t, err)
	assert.Equal(t, AggregateSum, agg)

	agg, err = ParseAggregation(" Mean ")
	require.NoError(t, err)
	assert.Equal(t, AggregateMean, agg)

	_, err = ParseAggregation("median")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestCalculator_AggregationModes(t *testing.T) {
	s := testSeries(t)
	stats, err := returns.NewStatistics(s, zerolog.Nop())
	require.NoError(t, err)
	w := []float64{0.4, 0.6}

	sumCalc, err := NewCalculator(stats, AggregateSum)
	require.NoError(t, err)
	meanCalc, err := NewCalculator(stats, AggregateMean)
	require.NoError(t, err)

	sumRet, err := sumCalc.ExpectedReturn(w)
	require.NoError(t, err)
	meanRet, err := meanCalc.ExpectedReturn(w)
	require.NoError(t, err)

	literal, _ := ExpectedReturn(w, s)
	assert.InDelta(t, literal, sumRet, 1e-15)
	assert.InDelta(t, literal/4, meanRet, 1e-15)
	assert.Equal(t, AggregateMean, meanCalc.Aggregation())

	sumRisk, _ := sumCalc.Risk(w)
	meanRisk, _ := meanCalc.Risk(w)
	assert.Equal(t, sumRisk, meanRisk, "aggregation never changes risk")
}

func TestCalculator_Evaluate(t *testing.T) {
	stats, err := returns.NewStatistics(testSeries(t), zerolog.Nop())
	require.NoError(t, err)
	calc, err := NewCalculator(stats, "")
	require.NoError(t, err)

	snap, err := calc.Evaluate([]float64{0.5, 0.5})
	require.NoError(t, err)
	assert.True(t, snap.SharpeDefined)
	assert.InDelta(t, snap.ExpectedReturn/snap.Risk, snap.SharpeRatio, 1e-12)

	_, err = calc.Evaluate([]float64{1})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestCalculator_GradientsMatchFiniteDifferences(t *testing.T) {
	stats, err := returns.NewStatistics(testSeries(t), zerolog.Nop())
	require.NoError(t, err)
	calc, err := NewCalculator(stats, AggregateSum)
	require.NoError(t, err)

	w := []float64{0.35, 0.65}
	const h = 1e-6

	check := func(name string, f func([]float64) float64, g func(grad, w []float64)) {
		grad := make([]float64, 2)
		g(grad, w)
		for i := range w {
			up := append([]float64(nil), w...)
			down := append([]float64(nil), w...)
			up[i] += h
			down[i] -= h
			numeric := (f(up) - f(down)) / (2 * h)
			assert.InDelta(t, numeric, grad[i], 1e-5, "%s gradient component %d", name, i)
		}
	}

	check("return", calc.ExpectedReturnValue, calc.ExpectedReturnGradient)
	check("risk", calc.RiskValue, calc.RiskGradient)
	check("sharpe", calc.SharpeValue, calc.SharpeGradient)
}

func TestNewCalculator_Invalid(t *testing.T) {
	_, err := NewCalculator(nil, AggregateSum)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	stats, err := returns.NewStatistics(testSeries(t), zerolog.Nop())
	require.NoError(t, err)
	_, err = NewCalculator(stats, "geometric")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
