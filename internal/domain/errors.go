// Package domain provides the error taxonomy shared by every module.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers classify failures with errors.Is.
var (
	// ErrInvalidInput covers bad shapes, non-finite values and out-of-range parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrDegenerateInput covers inputs that make a quantity undefined (zero variance, zero risk)
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrDivisionByZero is a DegenerateInput raised when a ratio has a zero denominator
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrDegenerateInput)

	// ErrConvergence is returned when a solver exhausts its budget without satisfying its constraints
	ErrConvergence = errors.New("solver did not converge")
)

// InvalidInputf formats a message and wraps ErrInvalidInput.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// DegenerateInputf formats a message and wraps ErrDegenerateInput.
func DegenerateInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDegenerateInput, fmt.Sprintf(format, args...))
}
