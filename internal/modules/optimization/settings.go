package optimization

import (
	"strings"
	"time"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"gonum.org/v1/gonum/optimize"
)

// Method names the gonum method used for the inner unconstrained solves.
type Method string

const (
	MethodBFGS       Method = "bfgs"
	MethodLBFGS      Method = "lbfgs"
	MethodNelderMead Method = "nelder-mead"
)

// MaxConstraintTolerance is the loosest constraint tolerance a solver may be configured with.
const MaxConstraintTolerance = 1e-6

// Settings bounds the work done by one constrained solve.
type Settings struct {
	Method              Method
	MaxIterations       int           // major iterations per inner solve
	MaxOuterIterations  int           // multiplier updates
	ConstraintTolerance float64       // max |g_i(x)| accepted as converged
	GradientThreshold   float64       // inner solve gradient norm threshold
	InitialPenalty      float64       // starting penalty weight
	PenaltyGrowth       float64       // penalty multiplier when violation stalls
	Timeout             time.Duration // wall clock per solve; 0 disables
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Method:              MethodBFGS,
		MaxIterations:       200,
		MaxOuterIterations:  50,
		ConstraintTolerance: 1e-7,
		GradientThreshold:   1e-10,
		InitialPenalty:      10,
		PenaltyGrowth:       10,
		Timeout:             10 * time.Second,
	}
}

// ParseMethod maps a config value to a Method. Empty means BFGS.
func ParseMethod(value string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(value))) {
	case "", MethodBFGS:
		return MethodBFGS, nil
	case MethodLBFGS:
		return MethodLBFGS, nil
	case MethodNelderMead, "neldermead":
		return MethodNelderMead, nil
	default:
		return "", domain.InvalidInputf("unknown optimizer method %q", value)
	}
}

// withDefaults fills zero fields from DefaultSettings and validates the result.
func (s Settings) withDefaults() (Settings, error) {
	def := DefaultSettings()
	if s.Method == "" {
		s.Method = def.Method
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = def.MaxIterations
	}
	if s.MaxOuterIterations == 0 {
		s.MaxOuterIterations = def.MaxOuterIterations
	}
	if s.ConstraintTolerance == 0 {
		s.ConstraintTolerance = def.ConstraintTolerance
	}
	if s.GradientThreshold == 0 {
		s.GradientThreshold = def.GradientThreshold
	}
	if s.InitialPenalty == 0 {
		s.InitialPenalty = def.InitialPenalty
	}
	if s.PenaltyGrowth == 0 {
		s.PenaltyGrowth = def.PenaltyGrowth
	}

	if _, err := ParseMethod(string(s.Method)); err != nil {
		return s, err
	}
	if s.MaxIterations < 0 || s.MaxOuterIterations < 0 {
		return s, domain.InvalidInputf("iteration caps must be positive")
	}
	if s.ConstraintTolerance < 0 || s.ConstraintTolerance > MaxConstraintTolerance {
		return s, domain.InvalidInputf("constraint tolerance %g outside (0, %g]", s.ConstraintTolerance, MaxConstraintTolerance)
	}
	if s.InitialPenalty < 0 || s.PenaltyGrowth <= 1 {
		return s, domain.InvalidInputf("penalty must be positive and grow by a factor > 1")
	}
	if s.Timeout < 0 {
		return s, domain.InvalidInputf("negative timeout")
	}
	return s, nil
}

// newMethod returns a fresh gonum method; methods carry state and are not shared.
func newMethod(m Method) optimize.Method {
	switch m {
	case MethodLBFGS:
		return &optimize.LBFGS{}
	case MethodNelderMead:
		return &optimize.NelderMead{}
	default:
		return &optimize.BFGS{}
	}
}
