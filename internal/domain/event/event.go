package event

import (
	"time"
)

// Type names an event kind as stored in the event log.
type Type string

const (
	TypeAccountCreated  Type = "AccountCreated"
	TypeAccountUpdated  Type = "AccountUpdated"
	TypeAccountDeleted  Type = "AccountDeleted"
	TypePasswordChanged Type = "PasswordChanged"
	TypeAccountApproved Type = "AccountApproved"
	TypeAccountBlocked  Type = "AccountBlocked"
	TypeRolesGranted    Type = "RolesGranted"
)

// Types lists every event kind in declaration order.
var Types = []Type{
	TypeAccountCreated,
	TypeAccountUpdated,
	TypeAccountDeleted,
	TypePasswordChanged,
	TypeAccountApproved,
	TypeAccountBlocked,
	TypeRolesGranted,
}

// Event is an immutable fact about a single account.
// The set of implementations is closed to this package.
type Event interface {
	EventType() Type
	AggregateID() string
	OccurredAt() time.Time
	sealed()
}

type header struct {
	ID string    `json:"aggregate_id"`
	At time.Time `json:"occurred_at"`
}

func newHeader(id string, at time.Time) header {
	if at.IsZero() {
		at = time.Now()
	}
	return header{ID: id, At: at.UTC()}
}

func (h header) AggregateID() string   { return h.ID }
func (h header) OccurredAt() time.Time { return h.At }
func (header) sealed()                 {}

type AccountCreated struct {
	header
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"password_hash,omitempty"`
	Roles        []string `json:"roles"`
	Sources      []string `json:"sources"`
}

func NewAccountCreated(id, name, email, passwordHash string, roles, sources []string, at time.Time) AccountCreated {
	return AccountCreated{
		header:       newHeader(id, at),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        clone(roles),
		Sources:      clone(sources),
	}
}

func (AccountCreated) EventType() Type { return TypeAccountCreated }

// AccountUpdated is a patch: nil fields were not part of the update.
type AccountUpdated struct {
	header
	Name    *string  `json:"name,omitempty"`
	Email   *string  `json:"email,omitempty"`
	Roles   []string `json:"roles"`
	Sources []string `json:"sources"`
}

func NewAccountUpdated(id string, name, email *string, roles, sources []string, at time.Time) AccountUpdated {
	return AccountUpdated{
		header:  newHeader(id, at),
		Name:    name,
		Email:   email,
		Roles:   clone(roles),
		Sources: clone(sources),
	}
}

func (AccountUpdated) EventType() Type { return TypeAccountUpdated }

type AccountDeleted struct {
	header
}

func NewAccountDeleted(id string, at time.Time) AccountDeleted {
	return AccountDeleted{header: newHeader(id, at)}
}

func (AccountDeleted) EventType() Type { return TypeAccountDeleted }

type PasswordChanged struct {
	header
	PasswordHash string `json:"password_hash,omitempty"`
}

func NewPasswordChanged(id, passwordHash string, at time.Time) PasswordChanged {
	return PasswordChanged{header: newHeader(id, at), PasswordHash: passwordHash}
}

func (PasswordChanged) EventType() Type { return TypePasswordChanged }

type AccountApproved struct {
	header
}

func NewAccountApproved(id string, at time.Time) AccountApproved {
	return AccountApproved{header: newHeader(id, at)}
}

func (AccountApproved) EventType() Type { return TypeAccountApproved }

type AccountBlocked struct {
	header
}

func NewAccountBlocked(id string, at time.Time) AccountBlocked {
	return AccountBlocked{header: newHeader(id, at)}
}

func (AccountBlocked) EventType() Type { return TypeAccountBlocked }

// RolesGranted replaces the whole role set.
type RolesGranted struct {
	header
	Roles []string `json:"roles"`
}

func NewRolesGranted(id string, roles []string, at time.Time) RolesGranted {
	r := clone(roles)
	if r == nil {
		r = []string{}
	}
	return RolesGranted{header: newHeader(id, at), Roles: r}
}

func (RolesGranted) EventType() Type { return TypeRolesGranted }

// clone keeps the nil/empty distinction that patch semantics rely on.
func clone(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Record is an event as persisted in the log.
type Record struct {
	Position    int64
	AggregateID string
	Version     int
	Type        Type
	Event       Event
	RecordedAt  time.Time
}
