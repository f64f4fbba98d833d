package optimization

import (
	"fmt"

	"github.com/falcone-gk/Finance-Instruments/internal/domain"
)

// ConvergenceError reports a solve that ended without satisfying its constraints.
// It matches domain.ErrConvergence under errors.Is and unwraps to its cause, if any.
type ConvergenceError struct {
	Reason     string
	Iterations int
	Violation  float64
	Cause      error
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("%s: %s after %d iterations (max constraint violation %.3g)",
		domain.ErrConvergence, e.Reason, e.Iterations, e.Violation)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is reports whether target is domain.ErrConvergence.
func (e *ConvergenceError) Is(target error) bool {
	return target == domain.ErrConvergence
}

// Unwrap returns the underlying cause.
func (e *ConvergenceError) Unwrap() error {
	return e.Cause
}
