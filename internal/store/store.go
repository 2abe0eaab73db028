// Package store persists plants, their append-only sensor logs and the
// watering commands sent to their pumps.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/SimonCaignart/plant-e/internal/watering"
)

// DefaultLogWindow is how many recent log entries a plant page or an
// evaluation looks at.
const DefaultLogWindow = 480

var (
	// ErrPlantNotFound is returned for operations on an unknown plant.
	ErrPlantNotFound = errors.New("plant not found")
	// ErrCommandNotFound is returned when updating an unknown watering command.
	ErrCommandNotFound = errors.New("watering command not found")
	// ErrEmptyEntry is returned when appending an entry that carries no reading and no watering.
	ErrEmptyEntry = errors.New("log entry has no reading")
	// ErrStaleEntry is returned when a reading was observed before the newest
	// entry of the plant's log, e.g. a redelivered message.
	ErrStaleEntry = errors.New("log entry is older than the latest entry")

	errPlantID = errors.New("plant id cannot be empty")
)

// Entry is a new log entry. ObservedAt defaults to the current time and is
// never later than it. A reading observed before the newest entry is
// rejected with ErrStaleEntry; a watering is moved after it.
type Entry struct {
	Reading    watering.Reading
	WasWatered bool
	ObservedAt time.Time
}

// SensorLogStore is the append-only per-plant log the engine reads from.
type SensorLogStore interface {
	// Latest returns up to n entries for plantID, most recent first.
	Latest(ctx context.Context, plantID string, n int) ([]watering.Log, error)
	// Append adds an entry and returns its id.
	Append(ctx context.Context, plantID string, entry Entry) (string, error)
}

// LogHistory serves reads over the whole log of a plant.
type LogHistory interface {
	// Page returns entries most recent first, skipping offset entries.
	Page(ctx context.Context, plantID string, offset, limit int) ([]watering.Log, error)
	// LastWatered returns the most recent watering entry, if any.
	LastWatered(ctx context.Context, plantID string) (watering.Log, bool, error)
}

// PlantStore manages plants and their watering configuration.
type PlantStore interface {
	Get(ctx context.Context, plantID string) (*Plant, error)
	List(ctx context.Context) ([]Plant, error)
	// ListAutomatic returns the plants with automatic watering enabled.
	ListAutomatic(ctx context.Context) ([]Plant, error)
	// Upsert creates a plant or refreshes its descriptive metadata. The
	// watering configuration of an existing plant is left untouched.
	Upsert(ctx context.Context, plant *Plant) error
	// UpdatePolicy validates and applies a policy change. On a validation
	// error nothing is written.
	UpdatePolicy(ctx context.Context, plantID string, in watering.PolicyInput) (*Plant, error)
	SetAutomaticWatering(ctx context.Context, plantID string, enabled bool) (*Plant, error)
	// Delete removes a plant together with its log and commands.
	Delete(ctx context.Context, plantID string) error
}

// CommandStore records watering commands.
type CommandStore interface {
	CreateCommand(ctx context.Context, cmd *WateringCommand) error
	UpdateCommand(ctx context.Context, commandID string, status CommandStatus, detail, logID string) error
	GetCommand(ctx context.Context, commandID string) (*WateringCommand, error)
}

// Store is everything the backend needs from persistence.
type Store interface {
	SensorLogStore
	LogHistory
	PlantStore
	CommandStore
}

// stamp picks the observation time and created_at of a new entry, given the
// newest entry of the log (zero when the log is empty). Observations ahead
// of now are stored at now. created_at is strictly increasing per plant.
func stamp(e Entry, lastObserved, lastCreated, now time.Time) (observed, created time.Time, err error) {
	now = now.UTC().Truncate(time.Microsecond)

	observed = e.ObservedAt.UTC().Truncate(time.Microsecond)
	if observed.IsZero() || observed.After(now) {
		observed = now
	}

	if !lastCreated.IsZero() && observed.Before(lastObserved) {
		if !e.WasWatered {
			return time.Time{}, time.Time{}, ErrStaleEntry
		}
		observed = lastObserved
	}

	created = observed
	if !lastCreated.IsZero() && !created.After(lastCreated) {
		created = lastCreated.Add(time.Microsecond)
	}
	return observed, created, nil
}

func validateEntry(plantID string, e Entry) error {
	if plantID == "" {
		return ErrPlantNotFound
	}
	if !e.WasWatered && e.Reading.IsEmpty() {
		return ErrEmptyEntry
	}
	return nil
}
