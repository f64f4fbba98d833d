package optimization

import (
	"errors"
	"testing"
	"time"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"", MethodBFGS, false},
		{"BFGS", MethodBFGS, false},
		{"lbfgs", MethodLBFGS, false},
		{"nelder-mead", MethodNelderMead, false},
		{"NelderMead", MethodNelderMead, false},
		{"newton", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, domain.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewAugmentedLagrangian_Defaults(t *testing.T) {
	opt, err := NewAugmentedLagrangian(Settings{}, zerolog.Nop())
	require.NoError(t, err)
	s := opt.Settings()
	assert.Equal(t, MethodBFGS, s.Method)
	assert.Equal(t, 200, s.MaxIterations)
	assert.Equal(t, 50, s.MaxOuterIterations)
	assert.LessOrEqual(t, s.ConstraintTolerance, MaxConstraintTolerance)
	assert.Zero(t, s.Timeout, "a zero timeout disables the deadline")
}

func TestNewAugmentedLagrangian_InvalidSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
	}{
		{"loose tolerance", Settings{ConstraintTolerance: 1e-3}},
		{"unknown method", Settings{Method: "simplex"}},
		{"negative iterations", Settings{MaxIterations: -1}},
		{"penalty does not grow", Settings{PenaltyGrowth: 1}},
		{"negative timeout", Settings{Timeout: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAugmentedLagrangian(tt.settings, zerolog.Nop())
			assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestNewMethod(t *testing.T) {
	assert.IsType(t, &optimize.BFGS{}, newMethod(MethodBFGS))
	assert.IsType(t, &optimize.LBFGS{}, newMethod(MethodLBFGS))
	assert.IsType(t, &optimize.NelderMead{}, newMethod(MethodNelderMead))
}

func TestConvergenceError(t *testing.T) {
	cause := errors.New("line search stalled")
	err := &ConvergenceError{Reason: "inner solve failed", Iterations: 12, Violation: 0.5, Cause: cause}

	assert.True(t, errors.Is(err, domain.ErrConvergence))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Contains(t, err.Error(), "inner solve failed after 12 iterations")
	assert.Contains(t, err.Error(), "line search stalled")
}

func TestUniformWeightsAndBounds(t *testing.T) {
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, UniformWeights(4))
	assert.Equal(t, []Bound{{0, 1}, {0, 1}}, UnitBounds(2))

	c := SumToOne()
	assert.InDelta(t, 0, c.Func([]float64{0.3, 0.7}), 1e-15)
	grad := make([]float64, 2)
	c.Grad(grad, []float64{0.3, 0.7})
	assert.Equal(t, []float64{1, 1}, grad)
}
