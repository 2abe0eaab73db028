// Package actuator turns watering decisions into pump commands.
package actuator

import (
	"context"
	"errors"
	"fmt"
)

// ErrActuation is the sentinel wrapped by every actuation failure.
var ErrActuation = errors.New("watering actuation failed")

// ErrNoRoute is returned when neither a pump link nor a command queue can reach the plant.
var ErrNoRoute = errors.New("no route to pump")

// WateringActuator executes a watering command for a plant and records it
// in the plant log. It returns the id of the appended wasWatered entry.
type WateringActuator interface {
	Water(ctx context.Context, plantID string) (string, error)
}

// Reason tells why a plant was watered.
type Reason string

const (
	ReasonAutomatic Reason = "automatic"
	ReasonManual    Reason = "manual"
)

// ActuationError reports a failed watering. It matches both ErrActuation and
// the underlying cause with errors.Is.
type ActuationError struct {
	PlantID   string
	CommandID string
	Op        string // lookup | command | send | record
	Err       error
}

func (e *ActuationError) Error() string {
	if e.CommandID != "" {
		return fmt.Sprintf("water plant %s (command %s): %s: %v", e.PlantID, e.CommandID, e.Op, e.Err)
	}
	return fmt.Sprintf("water plant %s: %s: %v", e.PlantID, e.Op, e.Err)
}

func (e *ActuationError) Unwrap() []error {
	return []error{ErrActuation, e.Err}
}
