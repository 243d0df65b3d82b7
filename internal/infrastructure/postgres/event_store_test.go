package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-service/internal/domain/errs"
	"github.com/oksasatya/account-service/internal/domain/event"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestEventStoreAppend(t *testing.T) {
	mock := newMock(t)
	store := NewEventStore(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO account_events").
		WithArgs("acc-1", 2, "AccountApproved", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"position", "recorded_at"}).AddRow(int64(7), now))
	mock.ExpectCommit()

	recs, err := store.Append(context.Background(), "acc-1", []event.Event{event.NewAccountApproved("acc-1", now)}, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Version)
	assert.Equal(t, int64(7), recs[0].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreAppendVersionMismatch(t *testing.T) {
	mock := newMock(t)
	store := NewEventStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectRollback()

	_, err := store.Append(context.Background(), "acc-1", []event.Event{event.NewAccountBlocked("acc-1", time.Time{})}, 2)
	assert.ErrorIs(t, err, errs.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreAppendUniqueViolation(t *testing.T) {
	mock := newMock(t)
	store := NewEventStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO account_events").
		WithArgs("acc-1", 1, "AccountCreated", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := store.Append(context.Background(), "acc-1", []event.Event{
		event.NewAccountCreated("acc-1", "Ann", "a@x.io", "h", nil, nil, time.Time{}),
	}, 0)
	assert.ErrorIs(t, err, errs.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreAppendPropagatesOtherErrors(t *testing.T) {
	mock := newMock(t)
	store := NewEventStore(mock)
	boom := errors.New("boom")

	mock.ExpectBegin().WillReturnError(boom)

	_, err := store.Append(context.Background(), "acc-1", []event.Event{event.NewAccountBlocked("acc-1", time.Time{})}, 0)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreEventsDecodesPayloads(t *testing.T) {
	mock := newMock(t)
	store := NewEventStore(mock)
	created := event.NewAccountCreated("acc-1", "Ann", "a@x.io", "h", []string{"ROLE_USER"}, nil, time.Unix(10, 0))
	payload, err := event.Encode(created)
	require.NoError(t, err)

	mock.ExpectQuery("FROM account_events").
		WithArgs("acc-1", 0).
		WillReturnRows(pgxmock.NewRows([]string{"position", "aggregate_id", "version", "event_type", "payload", "recorded_at"}).
			AddRow(int64(1), "acc-1", 1, "AccountCreated", payload, time.Unix(11, 0))).
		RowsWillBeClosed()

	recs, err := store.Events(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	got, ok := recs[0].Event.(event.AccountCreated)
	require.True(t, ok)
	assert.Equal(t, "a@x.io", got.Email)
	assert.Equal(t, []string{"ROLE_USER"}, got.Roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreEventsByType(t *testing.T) {
	mock := newMock(t)
	store := NewEventStore(mock)

	mock.ExpectQuery("WHERE event_type = ANY").
		WithArgs([]string{"AccountCreated", "AccountUpdated"}, 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{"position", "aggregate_id", "version", "event_type", "payload", "recorded_at"}))

	recs, err := store.EventsByType(context.Background(), 50, 0, event.TypeAccountCreated, event.TypeAccountUpdated)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
