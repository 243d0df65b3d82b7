package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-service/internal/domain/errs"
	"github.com/oksasatya/account-service/internal/domain/event"
)

func TestAppendAssignsVersions(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()

	recs, err := s.Append(ctx, "a", []event.Event{
		event.NewAccountCreated("a", "n", "a@x.io", "h", nil, nil, time.Time{}),
		event.NewAccountApproved("a", time.Time{}),
	}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Version)
	assert.Equal(t, 2, recs[1].Version)

	_, err = s.Append(ctx, "a", []event.Event{event.NewAccountBlocked("a", time.Time{})}, 1)
	assert.ErrorIs(t, err, errs.ErrConcurrencyConflict)

	all, err := s.Events(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	after, err := s.EventsAfter(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, event.TypeAccountApproved, after[0].Type)
}

func TestConcurrentAppendsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	_, err := s.Append(ctx, "a", []event.Event{event.NewAccountCreated("a", "n", "a@x.io", "h", nil, nil, time.Time{})}, 0)
	require.NoError(t, err)

	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(ctx, "a", []event.Event{event.NewAccountBlocked("a", time.Time{})}, 1)
			if err == nil {
				atomic.AddInt32(&wins, 1)
			} else if assert.ErrorIs(t, err, errs.ErrConcurrencyConflict) {
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(7), conflicts)
}

func TestEventsByTypeNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Append(ctx, id, []event.Event{event.NewAccountCreated(id, "n", id+"@x.io", "h", nil, nil, time.Time{})}, 0)
		require.NoError(t, err)
	}
	_, err := s.Append(ctx, "a", []event.Event{event.NewAccountApproved("a", time.Time{})}, 1)
	require.NoError(t, err)

	recs, err := s.EventsByType(ctx, 2, 0, event.TypeAccountCreated)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].AggregateID)
	assert.Equal(t, "b", recs[1].AggregateID)

	recs, err = s.EventsByType(ctx, 10, 2, event.TypeAccountCreated)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].AggregateID)

	all, err := s.ReadAll(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(3), all[0].Position)
}
