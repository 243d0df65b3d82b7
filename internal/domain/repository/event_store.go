package repository

import (
	"context"

	"github.com/oksasatya/account-service/internal/domain/event"
)

// EventStore is the append-only account event log.
type EventStore interface {
	// Append stores events as versions expectedVersion+1.. of the aggregate.
	// It fails with errs.ErrConcurrencyConflict when the stored version is
	// not expectedVersion. Nothing is stored on failure.
	Append(ctx context.Context, aggregateID string, events []event.Event, expectedVersion int) ([]event.Record, error)
	// Events returns the full history of an aggregate ordered by version.
	Events(ctx context.Context, aggregateID string) ([]event.Record, error)
	// EventsAfter returns the records with a version greater than version.
	EventsAfter(ctx context.Context, aggregateID string, version int) ([]event.Record, error)
	// EventsByType scans records of the given types, newest first.
	EventsByType(ctx context.Context, limit, offset int, types ...event.Type) ([]event.Record, error)
	// ReadAll returns records in global order after the given position.
	ReadAll(ctx context.Context, afterPosition int64, limit int) ([]event.Record, error)
}
