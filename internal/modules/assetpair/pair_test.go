package assetpair

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	assetA = Asset{Return: 0.1, StdDev: 0.12}
	assetB = Asset{Return: 0.25, StdDev: 0.3}
)

func TestPair_ClosedFormPerfectHedge(t *testing.T) {
	p, err := New(assetA, assetB, 0.5, -1)
	require.NoError(t, err)

	wantYield := 0.5*0.1 + 0.5*0.25
	wantVar := 0.25*0.12*0.12 + 0.25*0.3*0.3 + 2*0.25*(-1*0.12*0.3)

	assert.InDelta(t, -0.036, p.Covariance(), 1e-4)
	assert.InDelta(t, wantYield, p.ExpectedYield(), 1e-4)
	assert.InDelta(t, wantVar, p.Variance(), 1e-4)
	assert.InDelta(t, math.Sqrt(wantVar), p.Risk(), 1e-4)
	assert.InDelta(t, 0.09, p.Risk(), 1e-4)
}

func TestPair_ZeroRiskWeight(t *testing.T) {
	// With ρ = -1 the weight σ_B/(σ_A+σ_B) removes all risk.
	w := 0.3 / (0.12 + 0.3)
	p, err := New(assetA, assetB, w, -1)
	require.NoError(t, err)
	assert.InDelta(t, 0, p.Risk(), 1e-7)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		a    Asset
		w    float64
		rho  float64
	}{
		{"weight above 1", assetA, 1.1, 0},
		{"negative weight", assetA, -0.1, 0},
		{"correlation below -1", assetA, 0.5, -1.01},
		{"correlation above 1", assetA, 0.5, 1.5},
		{"negative std dev", Asset{Return: 0.1, StdDev: -0.1}, 0.5, 0},
		{"NaN return", Asset{Return: math.NaN(), StdDev: 0.1}, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.a, assetB, tt.w, tt.rho)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestDescription(t *testing.T) {
	p, err := New(assetA, assetB, 0.1, -1)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(p.Description(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Covariance         : -0.0360", lines[0])
	assert.Equal(t, "Expected yield     :  0.2350", lines[1])
	assert.True(t, strings.HasPrefix(lines[3], "Standard deviation : "))
}

func TestYieldCurves(t *testing.T) {
	p, err := New(assetA, assetB, 0.1, -1)
	require.NoError(t, err)

	curves, err := p.YieldCurves([]float64{-1, -0.75, -0.2, 0.4, 1}, 0)
	require.NoError(t, err)
	require.Len(t, curves, 5)

	for _, c := range curves {
		require.Len(t, c.Weights, DefaultCurveSteps)
		assert.Equal(t, 0.0, c.Weights[0])
		assert.Equal(t, 1.0, c.Weights[DefaultCurveSteps-1])

		// Weight 0 is all asset B, weight 1 all asset A.
		assert.InDelta(t, assetB.Return, c.Returns[0], 1e-12)
		assert.InDelta(t, assetB.StdDev, c.Risks[0], 1e-12)
		assert.InDelta(t, assetA.Return, c.Returns[DefaultCurveSteps-1], 1e-12)
		assert.InDelta(t, assetA.StdDev, c.Risks[DefaultCurveSteps-1], 1e-12)
	}

	// With ρ = 1 the curve is a straight line in risk.
	line := curves[4]
	mid := DefaultCurveSteps / 2
	w := line.Weights[mid]
	assert.InDelta(t, w*assetA.StdDev+(1-w)*assetB.StdDev, line.Risks[mid], 1e-12)

	_, err = p.YieldCurves([]float64{2}, 10)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = p.YieldCurves([]float64{0}, 1)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
