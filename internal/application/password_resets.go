package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/errs"
	repo "github.com/oksasatya/account-service/internal/domain/repository"
)

// PasswordSetter changes a password without a requester.
type PasswordSetter interface {
	ResetPassword(ctx context.Context, id, password string) error
}

// PasswordResets issues and redeems one-time password reset tokens.
type PasswordResets struct {
	Repo     repo.PasswordResetRepository
	Queries  *AccountQueries
	Accounts PasswordSetter
	Notifier Notifier
	Lifetime time.Duration
	Logger   *logrus.Logger
	Now      func() time.Time
	// Go runs the notification; tests replace it to run inline.
	Go func(func())
}

func NewPasswordResets(r repo.PasswordResetRepository, queries *AccountQueries, accounts PasswordSetter, notifier Notifier, lifetime time.Duration, logger *logrus.Logger) *PasswordResets {
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return &PasswordResets{
		Repo:     r,
		Queries:  queries,
		Accounts: accounts,
		Notifier: notifier,
		Lifetime: lifetime,
		Logger:   logger,
		Now:      time.Now,
		Go:       func(f func()) { go f() },
	}
}

// RequestReset never reports whether email belongs to an account.
func (p *PasswordResets) RequestReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	id, found, err := p.Queries.lookupEmail(ctx, email)
	if err != nil {
		return err
	}
	if !found {
		p.debug("password reset requested for unknown email")
		return nil
	}
	acc, err := p.Queries.byID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	reset := &entity.PasswordReset{Token: token, AccountID: id, CreatedAt: p.Now().UTC()}
	created, err := p.Repo.CreateIfNoneActive(ctx, reset, p.Lifetime)
	if err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if !created {
		if p.Logger != nil {
			p.Logger.WithField("account_id", id).Debug("active reset token exists, request ignored")
		}
		return nil
	}

	to, name := acc.Email, acc.Name
	p.Go(func() {
		// detached from the request, which is over by the time this runs
		nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.Notifier.SendPasswordReset(nctx, to, name, token); err != nil {
			if p.Logger != nil {
				p.Logger.WithError(err).WithField("account_id", id).Error("password reset notification failed")
			}
			return
		}
		if err := p.Repo.MarkNotified(nctx, token, p.Now().UTC()); err != nil && p.Logger != nil {
			p.Logger.WithError(err).WithField("account_id", id).Warn("mark reset notified failed")
		}
	})
	return nil
}

// Redeem consumes token and sets password on its account. The token is
// claimed before the password changes so two concurrent redemptions cannot
// both succeed; it is released again if the change fails.
func (p *PasswordResets) Redeem(ctx context.Context, token, password string) error {
	reset, err := p.Repo.FindByToken(ctx, token)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("load reset token: %w", err)
	}
	now := p.Now().UTC()
	if !reset.Active(now, p.Lifetime) {
		return errs.ErrInvalidToken
	}
	claimed, err := p.Repo.MarkUsed(ctx, token, now, p.Lifetime)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if !claimed {
		return errs.ErrInvalidToken
	}

	if err := p.Accounts.ResetPassword(ctx, reset.AccountID, password); err != nil {
		if rErr := p.Repo.Release(ctx, token); rErr != nil && p.Logger != nil {
			p.Logger.WithError(rErr).WithField("account_id", reset.AccountID).Error("release reset token failed")
		}
		return err
	}
	if p.Logger != nil {
		p.Logger.WithField("account_id", reset.AccountID).Info("password reset completed")
	}
	return nil
}

func (p *PasswordResets) debug(msg string) {
	if p.Logger != nil {
		p.Logger.Debug(msg)
	}
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
