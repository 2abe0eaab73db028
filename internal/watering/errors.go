package watering

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is the sentinel wrapped by every policy validation failure.
var ErrInvalidPolicy = errors.New("invalid watering policy")

// ValidationError describes a single rejected policy field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets callers match any validation failure with errors.Is(err, ErrInvalidPolicy).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidPolicy
}
