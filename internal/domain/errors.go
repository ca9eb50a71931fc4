package domain

import (
	"errors"
	"fmt"
)

// ErrNoUsableRows is returned when a training batch has zero usable rows
// after NaN/Inf filtering. Discovery cannot proceed; the caller decides
// whether to retry with fresh data.
var ErrNoUsableRows = errors.New("no usable training rows after filtering")

// MissingVariableError indicates a discovered equation references a symbol
// absent from the observation being evaluated - a schema mismatch between
// training and serving. Fatal for the single prediction only; batch and grid
// sweeps record the failure and continue.
type MissingVariableError struct {
	Symbol string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("equation references unknown variable %q", e.Symbol)
}

// IsMissingVariable reports whether err wraps a MissingVariableError.
func IsMissingVariable(err error) bool {
	var mv *MissingVariableError
	return errors.As(err, &mv)
}
