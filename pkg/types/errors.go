package types

import (
	"errors"
	"fmt"
)

// ErrNoPayloads is returned when a payload must be drawn from an empty pool
var ErrNoPayloads = errors.New("no payloads available")

// MisconfigurationError aborts an execution that cannot continue fuzzing
type MisconfigurationError struct {
	Component string
	Err       error
}

func (e *MisconfigurationError) Error() string {
	return fmt.Sprintf("misconfiguration in %s: %v", e.Component, e.Err)
}

func (e *MisconfigurationError) Unwrap() error {
	return e.Err
}
