package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/account-service/internal/domain/errs"
	"github.com/oksasatya/account-service/internal/domain/event"
)

// EventStore persists account events in the account_events table. The
// UNIQUE (aggregate_id, version) constraint makes the version check and
// insert atomic even between concurrent transactions.
type EventStore struct {
	db DB
}

func NewEventStore(db DB) *EventStore {
	return &EventStore{db: db}
}

const recordColumns = `position, aggregate_id, version, event_type, payload, recorded_at`

func (s *EventStore) Append(ctx context.Context, aggregateID string, events []event.Event, expectedVersion int) ([]event.Record, error) {
	if len(events) == 0 {
		return nil, nil
	}
	out := make([]event.Record, 0, len(events))
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		var current int
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(version), 0)
			FROM account_events
			WHERE aggregate_id = $1
		`, aggregateID).Scan(&current); err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		if current != expectedVersion {
			return errs.ErrConcurrencyConflict
		}

		for i, e := range events {
			payload, err := event.Encode(e)
			if err != nil {
				return err
			}
			rec := event.Record{
				AggregateID: aggregateID,
				Version:     expectedVersion + i + 1,
				Type:        e.EventType(),
				Event:       e,
			}
			if err := tx.QueryRow(ctx, `
				INSERT INTO account_events (aggregate_id, version, event_type, payload)
				VALUES ($1, $2, $3, $4)
				RETURNING position, recorded_at
			`, aggregateID, rec.Version, string(rec.Type), payload).Scan(&rec.Position, &rec.RecordedAt); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.ErrConcurrencyConflict
		}
		return nil, err
	}
	return out, nil
}

func (s *EventStore) Events(ctx context.Context, aggregateID string) ([]event.Record, error) {
	return s.EventsAfter(ctx, aggregateID, 0)
}

func (s *EventStore) EventsAfter(ctx context.Context, aggregateID string, version int) ([]event.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM account_events
		WHERE aggregate_id = $1 AND version > $2
		ORDER BY version
	`, aggregateID, version)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *EventStore) EventsByType(ctx context.Context, limit, offset int, types ...event.Type) ([]event.Record, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM account_events
		WHERE event_type = ANY($1)
		ORDER BY position DESC
		LIMIT $2 OFFSET $3
	`, names, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *EventStore) ReadAll(ctx context.Context, afterPosition int64, limit int) ([]event.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM account_events
		WHERE position > $1
		ORDER BY position
		LIMIT $2
	`, afterPosition, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]event.Record, error) {
	defer rows.Close()

	var out []event.Record
	for rows.Next() {
		var (
			rec       event.Record
			eventType string
			payload   []byte
			recorded  time.Time
		)
		if err := rows.Scan(&rec.Position, &rec.AggregateID, &rec.Version, &eventType, &payload, &recorded); err != nil {
			return nil, err
		}
		rec.Type = event.Type(strings.TrimSpace(eventType))
		e, err := event.Decode(rec.Type, payload)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.Position, err)
		}
		rec.Event = e
		rec.RecordedAt = recorded.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
