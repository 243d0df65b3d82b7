package repository

import (
	"context"
	"time"

	"github.com/oksasatya/account-service/internal/domain/entity"
)

type PasswordResetRepository interface {
	// CreateIfNoneActive stores reset unless the account already has an
	// unused token younger than lifetime. It reports whether it stored.
	CreateIfNoneActive(ctx context.Context, reset *entity.PasswordReset, lifetime time.Duration) (bool, error)
	FindByToken(ctx context.Context, token string) (*entity.PasswordReset, error)
	MarkNotified(ctx context.Context, token string, at time.Time) error
	// MarkUsed consumes the token if it is still unused and not older than
	// lifetime. It reports whether this call consumed it.
	MarkUsed(ctx context.Context, token string, at time.Time, lifetime time.Duration) (bool, error)
	// Release reverts MarkUsed.
	Release(ctx context.Context, token string) error
}

type AuditLogRepository interface {
	Insert(ctx context.Context, entry entity.AuditLog) error
}
