package entity

import (
	"fmt"
	"time"

	"github.com/oksasatya/account-service/internal/domain/errs"
	"github.com/oksasatya/account-service/internal/domain/event"
)

// Account is the aggregate root of the account lifecycle. Its state is
// derived only from its events; intention methods queue new events in a
// pending buffer that the caller drains after a successful append.
type Account struct {
	id           string
	name         string
	email        string
	passwordHash string
	roles        []string
	sources      []string
	approved     bool
	blockedAt    *time.Time
	deletedAt    *time.Time
	createdAt    time.Time
	updatedAt    time.Time

	version int
	pending []event.Event
	now     func() time.Time
}

type Option func(*Account)

// WithClock overrides the time source used for new events.
func WithClock(now func() time.Time) Option {
	return func(a *Account) { a.now = now }
}

// AccountPatch carries the optional fields of an update. Nil means unchanged;
// an empty non-nil slice clears the set.
type AccountPatch struct {
	Name    *string
	Email   *string
	Roles   []string
	Sources []string
}

func NewAccount(opts ...Option) *Account {
	a := &Account{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateAccount starts a new aggregate with a pending AccountCreated event.
// Email uniqueness is the caller's concern.
func CreateAccount(id, name, email, passwordHash string, roles, sources []string, opts ...Option) *Account {
	a := NewAccount(opts...)
	if roles == nil {
		roles = []string{}
	}
	if sources == nil {
		sources = []string{}
	}
	a.raise(event.NewAccountCreated(id, name, email, passwordHash, roles, sources, a.now()))
	return a
}

// LoadAccount rebuilds an aggregate from its stored records.
func LoadAccount(records []event.Record, opts ...Option) (*Account, error) {
	a := NewAccount(opts...)
	events := make([]event.Event, 0, len(records))
	for _, r := range records {
		events = append(events, r.Event)
	}
	if err := a.Replay(events...); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Account) Update(p AccountPatch) error {
	if a.IsDeleted() {
		return errs.ErrInvalidState
	}
	a.raise(event.NewAccountUpdated(a.id, p.Name, p.Email, p.Roles, p.Sources, a.now()))
	return nil
}

func (a *Account) ChangePassword(hash string) error {
	if a.IsDeleted() {
		return errs.ErrInvalidState
	}
	a.raise(event.NewPasswordChanged(a.id, hash, a.now()))
	return nil
}

// Delete is a no-op on an already deleted account.
func (a *Account) Delete() {
	if a.IsDeleted() {
		return
	}
	a.raise(event.NewAccountDeleted(a.id, a.now()))
}

func (a *Account) Approve() {
	if a.approved {
		return
	}
	a.raise(event.NewAccountApproved(a.id, a.now()))
}

func (a *Account) Block() {
	if a.IsBlocked() {
		return
	}
	a.raise(event.NewAccountBlocked(a.id, a.now()))
}

// GrantRoles always records a grant, even when the set is unchanged.
func (a *Account) GrantRoles(roles []string) {
	a.raise(event.NewRolesGranted(a.id, roles, a.now()))
}

// Replay folds already persisted events into the aggregate state.
func (a *Account) Replay(events ...event.Event) error {
	for _, e := range events {
		if err := a.apply(e); err != nil {
			return err
		}
		a.version++
	}
	return nil
}

// PendingEvents returns the events raised since the last commit.
func (a *Account) PendingEvents() []event.Event {
	out := make([]event.Event, len(a.pending))
	copy(out, a.pending)
	return out
}

// MarkCommitted advances the version past the pending events and clears them.
func (a *Account) MarkCommitted() {
	a.version += len(a.pending)
	a.pending = nil
}

func (a *Account) raise(e event.Event) {
	// events built here always target this aggregate, apply cannot fail
	_ = a.apply(e)
	a.pending = append(a.pending, e)
}

func (a *Account) apply(e event.Event) error {
	if a.id != "" && e.AggregateID() != a.id {
		return fmt.Errorf("event %s for %s applied to account %s", e.EventType(), e.AggregateID(), a.id)
	}
	return event.Visit(e, (*folder)(a))
}

// Version is the number of persisted events, the expected version of the next append.
func (a *Account) Version() int { return a.version }

func (a *Account) ID() string           { return a.id }
func (a *Account) Name() string         { return a.name }
func (a *Account) Email() string        { return a.email }
func (a *Account) PasswordHash() string { return a.passwordHash }
func (a *Account) Approved() bool       { return a.approved }
func (a *Account) CreatedAt() time.Time { return a.createdAt }
func (a *Account) UpdatedAt() time.Time { return a.updatedAt }
func (a *Account) BlockedAt() *time.Time {
	return copyTime(a.blockedAt)
}
func (a *Account) DeletedAt() *time.Time {
	return copyTime(a.deletedAt)
}
func (a *Account) IsBlocked() bool { return a.blockedAt != nil }
func (a *Account) IsDeleted() bool { return a.deletedAt != nil }
func (a *Account) Exists() bool    { return a.id != "" }

func (a *Account) Roles() []string {
	out := make([]string, len(a.roles))
	copy(out, a.roles)
	return out
}

func (a *Account) Sources() []string {
	out := make([]string, len(a.sources))
	copy(out, a.sources)
	return out
}

// HasRole reports whether the account currently holds role.
func (a *Account) HasRole(role string) bool {
	for _, r := range a.roles {
		if r == role {
			return true
		}
	}
	return false
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// folder applies events to the account state.
type folder Account

func (f *folder) AccountCreated(e event.AccountCreated) error {
	f.id = e.AggregateID()
	f.name = e.Name
	f.email = e.Email
	f.passwordHash = e.PasswordHash
	f.roles = append([]string{}, e.Roles...)
	f.sources = append([]string{}, e.Sources...)
	f.createdAt = e.OccurredAt()
	f.updatedAt = e.OccurredAt()
	return nil
}

func (f *folder) AccountUpdated(e event.AccountUpdated) error {
	if e.Name != nil {
		f.name = *e.Name
	}
	if e.Email != nil {
		f.email = *e.Email
	}
	if e.Roles != nil {
		f.roles = append([]string{}, e.Roles...)
	}
	if e.Sources != nil {
		f.sources = append([]string{}, e.Sources...)
	}
	f.updatedAt = e.OccurredAt()
	return nil
}

func (f *folder) AccountDeleted(e event.AccountDeleted) error {
	at := e.OccurredAt()
	f.deletedAt = &at
	f.updatedAt = at
	return nil
}

func (f *folder) PasswordChanged(e event.PasswordChanged) error {
	f.passwordHash = e.PasswordHash
	f.updatedAt = e.OccurredAt()
	return nil
}

func (f *folder) AccountApproved(e event.AccountApproved) error {
	f.approved = true
	f.updatedAt = e.OccurredAt()
	return nil
}

func (f *folder) AccountBlocked(e event.AccountBlocked) error {
	at := e.OccurredAt()
	f.blockedAt = &at
	f.updatedAt = at
	return nil
}

func (f *folder) RolesGranted(e event.RolesGranted) error {
	f.roles = append([]string{}, e.Roles...)
	f.updatedAt = e.OccurredAt()
	return nil
}
