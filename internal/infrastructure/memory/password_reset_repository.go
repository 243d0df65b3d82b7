package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/errs"
)

type PasswordResetRepository struct {
	mu      sync.Mutex
	byToken map[string]*entity.PasswordReset
	now     func() time.Time
}

func NewPasswordResetRepository() *PasswordResetRepository {
	return &PasswordResetRepository{byToken: map[string]*entity.PasswordReset{}, now: time.Now}
}

// WithNow replaces the clock used for activity checks.
func (r *PasswordResetRepository) WithNow(now func() time.Time) *PasswordResetRepository {
	r.now = now
	return r
}

func (r *PasswordResetRepository) CreateIfNoneActive(_ context.Context, reset *entity.PasswordReset, lifetime time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, p := range r.byToken {
		if p.AccountID == reset.AccountID && p.Active(now, lifetime) {
			return false, nil
		}
	}
	if _, ok := r.byToken[reset.Token]; ok {
		return false, errs.ErrConflict
	}
	c := *reset
	r.byToken[reset.Token] = &c
	return true, nil
}

func (r *PasswordResetRepository) FindByToken(_ context.Context, token string) (*entity.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byToken[token]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *PasswordResetRepository) MarkNotified(_ context.Context, token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byToken[token]
	if !ok {
		return errs.ErrNotFound
	}
	p.NotifiedAt = &at
	return nil
}

func (r *PasswordResetRepository) MarkUsed(_ context.Context, token string, at time.Time, lifetime time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byToken[token]
	if !ok || !p.Active(at, lifetime) {
		return false, nil
	}
	p.UsedAt = &at
	return true, nil
}

func (r *PasswordResetRepository) Release(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byToken[token]; ok {
		p.UsedAt = nil
	}
	return nil
}

// Count returns the number of stored tokens for accountID.
func (r *PasswordResetRepository) Count(accountID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.byToken {
		if p.AccountID == accountID {
			n++
		}
	}
	return n
}
