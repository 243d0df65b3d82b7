package entity

import "time"

// PasswordReset is a one-time token allowing an account to set a new password.
type PasswordReset struct {
	Token      string
	AccountID  string
	CreatedAt  time.Time
	NotifiedAt *time.Time
	UsedAt     *time.Time
}

// Active reports whether the token is unused and younger than lifetime at now.
func (p *PasswordReset) Active(now time.Time, lifetime time.Duration) bool {
	return p.UsedAt == nil && now.Before(p.CreatedAt.Add(lifetime))
}
