package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/errs"
)

type PasswordResetRepository struct {
	db DB
}

func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// CreateIfNoneActive serializes concurrent requests for one account with a
// transaction-scoped advisory lock on the account id.
func (r *PasswordResetRepository) CreateIfNoneActive(ctx context.Context, reset *entity.PasswordReset, lifetime time.Duration) (bool, error) {
	created := false
	err := withTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, reset.AccountID); err != nil {
			return err
		}
		var active bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM password_resets
				WHERE account_id = $1 AND used_at IS NULL AND created_at > $2
			)
		`, reset.AccountID, reset.CreatedAt.Add(-lifetime)).Scan(&active); err != nil {
			return err
		}
		if active {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO password_resets (token, account_id, created_at)
			VALUES ($1, $2, $3)
		`, reset.Token, reset.AccountID, reset.CreatedAt); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return false, errs.ErrConflict
		}
		return false, err
	}
	return created, nil
}

func (r *PasswordResetRepository) FindByToken(ctx context.Context, token string) (*entity.PasswordReset, error) {
	p := &entity.PasswordReset{}
	err := r.db.QueryRow(ctx, `
		SELECT token, account_id, created_at, notified_at, used_at
		FROM password_resets
		WHERE token = $1
	`, token).Scan(&p.Token, &p.AccountID, &p.CreatedAt, &p.NotifiedAt, &p.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PasswordResetRepository) MarkNotified(ctx context.Context, token string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE password_resets SET notified_at = $2 WHERE token = $1`, token, at)
	return err
}

func (r *PasswordResetRepository) MarkUsed(ctx context.Context, token string, at time.Time, lifetime time.Duration) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE password_resets
		SET used_at = $2
		WHERE token = $1 AND used_at IS NULL AND created_at > $3
	`, token, at, at.Add(-lifetime))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PasswordResetRepository) Release(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx, `UPDATE password_resets SET used_at = NULL WHERE token = $1`, token)
	return err
}
