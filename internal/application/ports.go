package application

import (
	"context"

	"github.com/oksasatya/account-service/internal/domain/event"
)

// PasswordHasher is a one-way password hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// Notifier delivers out-of-band messages to account holders.
type Notifier interface {
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// Dispatcher hands freshly appended records to the projections.
type Dispatcher interface {
	Dispatch(ctx context.Context, records []event.Record)
}

// Requester is the authenticated caller of a command or query.
type Requester struct {
	ID    string
	Roles []string
}

func (r *Requester) HasAnyRole(roles ...string) bool {
	if r == nil {
		return false
	}
	for _, have := range r.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
