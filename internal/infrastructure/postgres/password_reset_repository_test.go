package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/errs"
)

func TestCreateIfNoneActiveInserts(t *testing.T) {
	mock := newMock(t)
	repo := NewPasswordResetRepository(mock)
	now := time.Now().UTC()
	reset := &entity.PasswordReset{Token: "tok", AccountID: "acc-1", CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("acc-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acc-1", now.Add(-time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO password_resets").
		WithArgs("tok", "acc-1", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ok, err := repo.CreateIfNoneActive(context.Background(), reset, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfNoneActiveSkipsWhenActive(t *testing.T) {
	mock := newMock(t)
	repo := NewPasswordResetRepository(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("acc-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acc-1", now.Add(-time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	ok, err := repo.CreateIfNoneActive(context.Background(), &entity.PasswordReset{Token: "tok", AccountID: "acc-1", CreatedAt: now}, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByTokenNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPasswordResetRepository(mock)

	mock.ExpectQuery("FROM password_resets").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"token", "account_id", "created_at", "notified_at", "used_at"}))

	_, err := repo.FindByToken(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkUsedIsConditional(t *testing.T) {
	mock := newMock(t)
	repo := NewPasswordResetRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE password_resets").
		WithArgs("tok", at, at.Add(-time.Hour)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE password_resets").
		WithArgs("tok", at, at.Add(-time.Hour)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	first, err := repo.MarkUsed(context.Background(), "tok", at, time.Hour)
	require.NoError(t, err)
	second, err := repo.MarkUsed(context.Background(), "tok", at, time.Hour)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogInsert(t *testing.T) {
	mock := newMock(t)
	repo := NewAuditLogRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("account", "acc-1", "approve", pgxmock.AnyArg(), pgxmock.AnyArg(), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Insert(context.Background(), entity.AuditLog{
		Entity: "account", EntityID: "acc-1", Action: "approve", ActorID: "admin", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
