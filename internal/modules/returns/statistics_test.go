package returns

import (
	"errors"
	"math"
	"testing"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSeries(t *testing.T, rows [][]float64, names ...string) *Series {
	t.Helper()
	var assets []string
	if len(names) > 0 {
		assets = names
	}
	s, err := NewSeries(rows, assets)
	require.NoError(t, err)
	return s
}

func TestComputeCovariance_SampleDenominator(t *testing.T) {
	s := mustSeries(t, [][]float64{
		{0.01, 0.02},
		{0.03, 0.01},
		{-0.01, 0.03},
	})

	cov, err := ComputeCovariance(s)
	require.NoError(t, err)

	// Column A: mean 0.01, deviations 0, 0.02, -0.02 -> var = 0.0008/2
	assert.InDelta(t, 0.0004, cov.At(0, 0), 1e-15)
	// Column B: mean 0.02, deviations 0, -0.01, 0.01 -> var = 0.0002/2
	assert.InDelta(t, 0.0001, cov.At(1, 1), 1e-15)
	// Cross: (0*0 + 0.02*-0.01 + -0.02*0.01)/2
	assert.InDelta(t, -0.0002, cov.At(0, 1), 1e-15)
	assert.Equal(t, cov.At(0, 1), cov.At(1, 0))
}

func TestComputeCovariance_NilSeries(t *testing.T) {
	_, err := ComputeCovariance(nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestComputeCorrelation(t *testing.T) {
	s := mustSeries(t, [][]float64{
		{0.01, 0.02, -0.01},
		{0.02, 0.04, -0.02},
		{0.03, 0.06, -0.03},
		{0.00, 0.00, 0.00},
	})

	corr, err := ComputeCorrelation(s)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, corr.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, corr.At(0, 1), 1e-12, "perfectly co-moving pair")
	assert.InDelta(t, -1.0, corr.At(0, 2), 1e-12, "mirror pair")
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.LessOrEqual(t, math.Abs(corr.At(i, j)), 1.0)
		}
	}
}

func TestComputeCorrelation_ZeroVariance(t *testing.T) {
	s := mustSeries(t, [][]float64{
		{0.01, 0.02},
		{0.03, 0.02},
		{0.02, 0.02},
	}, "stock", "cash")

	_, err := ComputeCorrelation(s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDegenerateInput))
	assert.Contains(t, err.Error(), `"cash"`)

	// Covariance itself is still defined.
	_, err = ComputeCovariance(s)
	assert.NoError(t, err)
}

func TestNewStatistics_CachesCopies(t *testing.T) {
	s := mustSeries(t, [][]float64{
		{0.01, 0.02},
		{0.03, 0.01},
		{-0.01, 0.03},
	})
	stats, err := NewStatistics(s, zerolog.Nop())
	require.NoError(t, err)

	cov := stats.Covariance()
	cov.SetSym(0, 0, 42)
	assert.InDelta(t, 0.0004, stats.Covariance().At(0, 0), 1e-15, "Covariance must return a copy")
	assert.InDelta(t, 0.0004, stats.CovarianceView().At(0, 0), 1e-15)

	corr := stats.Correlation()
	corr.SetSym(0, 1, 0)
	assert.NotEqual(t, 0.0, stats.Correlation().At(0, 1))

	assert.InDeltaSlice(t, []float64{0.02, 0.01}, stats.Volatilities(), 1e-12)
	assert.Equal(t, 2, stats.Assets())
	assert.Same(t, s, stats.Series())
}

func TestNewStatistics_ZeroVariance(t *testing.T) {
	s := mustSeries(t, [][]float64{{0.01, 0}, {0.02, 0}})
	_, err := NewStatistics(s, zerolog.Nop())
	assert.True(t, errors.Is(err, domain.ErrDegenerateInput))
}

func TestHighCorrelations(t *testing.T) {
	s := mustSeries(t, [][]float64{
		{0.01, 0.011, -0.01, 0.03},
		{0.02, 0.019, -0.02, -0.01},
		{0.03, 0.031, -0.03, 0.02},
		{0.00, 0.001, 0.00, 0.00},
	}, "A", "B", "C", "D")
	stats, err := NewStatistics(s, zerolog.Nop())
	require.NoError(t, err)

	pairs := stats.HighCorrelations(0)
	require.NotEmpty(t, pairs)
	for i, p := range pairs {
		assert.GreaterOrEqual(t, math.Abs(p.Correlation), HighCorrelationThreshold)
		if i > 0 {
			assert.LessOrEqual(t, math.Abs(p.Correlation), math.Abs(pairs[i-1].Correlation))
		}
	}

	found := false
	for _, p := range pairs {
		if p.AssetA == "A" && p.AssetB == "C" {
			found = true
			assert.InDelta(t, -1.0, p.Correlation, 1e-12)
		}
	}
	assert.True(t, found, "A and C move in exact opposition")
}
