package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oksasatya/account-service/internal/domain/errs"
	"github.com/oksasatya/account-service/internal/domain/event"
)

// EventStore keeps the event log in process memory.
type EventStore struct {
	mu        sync.RWMutex
	records   []event.Record
	byAccount map[string][]int
	now       func() time.Time
}

func NewEventStore() *EventStore {
	return &EventStore{byAccount: map[string][]int{}, now: time.Now}
}

func (s *EventStore) Append(_ context.Context, aggregateID string, events []event.Event, expectedVersion int) ([]event.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.byAccount[aggregateID]) != expectedVersion {
		return nil, errs.ErrConcurrencyConflict
	}
	out := make([]event.Record, 0, len(events))
	for i, e := range events {
		rec := event.Record{
			Position:    int64(len(s.records) + 1),
			AggregateID: aggregateID,
			Version:     expectedVersion + i + 1,
			Type:        e.EventType(),
			Event:       e,
			RecordedAt:  s.now().UTC(),
		}
		s.byAccount[aggregateID] = append(s.byAccount[aggregateID], len(s.records))
		s.records = append(s.records, rec)
		out = append(out, rec)
	}
	return out, nil
}

func (s *EventStore) Events(ctx context.Context, aggregateID string) ([]event.Record, error) {
	return s.EventsAfter(ctx, aggregateID, 0)
}

func (s *EventStore) EventsAfter(_ context.Context, aggregateID string, version int) ([]event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byAccount[aggregateID]
	if version >= len(idx) {
		return nil, nil
	}
	if version < 0 {
		version = 0
	}
	out := make([]event.Record, 0, len(idx)-version)
	for _, i := range idx[version:] {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *EventStore) EventsByType(_ context.Context, limit, offset int, types ...event.Type) ([]event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[event.Type]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	var out []event.Record
	skipped := 0
	for i := len(s.records) - 1; i >= 0; i-- {
		if _, ok := want[s.records[i].Type]; !ok {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, s.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *EventStore) ReadAll(_ context.Context, afterPosition int64, limit int) ([]event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if afterPosition < 0 {
		afterPosition = 0
	}
	if afterPosition >= int64(len(s.records)) {
		return nil, nil
	}
	rest := s.records[afterPosition:]
	if limit > 0 && len(rest) > limit {
		rest = rest[:limit]
	}
	out := make([]event.Record, len(rest))
	copy(out, rest)
	return out, nil
}
