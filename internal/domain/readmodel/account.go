package readmodel

import (
	"time"

	"github.com/oksasatya/account-service/internal/domain/entity"
)

// Account is the cached, query-side view of an account. It never carries
// the password hash.
type Account struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Roles     []string   `json:"roles"`
	Sources   []string   `json:"sources"`
	Approved  bool       `json:"approved"`
	BlockedAt *time.Time `json:"blocked_at,omitempty"`
	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Version   int        `json:"version"`
}

// FromAggregate builds the view of a replayed aggregate.
func FromAggregate(a *entity.Account) *Account {
	return &Account{
		ID:        a.ID(),
		Name:      a.Name(),
		Email:     a.Email(),
		Roles:     a.Roles(),
		Sources:   a.Sources(),
		Approved:  a.Approved(),
		BlockedAt: a.BlockedAt(),
		Deleted:   a.IsDeleted(),
		DeletedAt: a.DeletedAt(),
		CreatedAt: a.CreatedAt(),
		UpdatedAt: a.UpdatedAt(),
		Version:   a.Version(),
	}
}

func (a *Account) Blocked() bool { return a.BlockedAt != nil }

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	c.Roles = append([]string{}, a.Roles...)
	c.Sources = append([]string{}, a.Sources...)
	if a.BlockedAt != nil {
		t := *a.BlockedAt
		c.BlockedAt = &t
	}
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
