package templates

import (
	"net/url"
	"time"
)

// Option pattern
type Option func(*EmailData)

func WithCompany(name, supportURL string) Option {
	return func(d *EmailData) {
		d.CompanyName = name
		d.SupportURL = supportURL
	}
}

func WithAppName(name string) Option { return func(d *EmailData) { d.AppName = name } }

// WithResetToken appends token to the reset page URL as the token query parameter.
func WithResetToken(base, token string) Option {
	return func(d *EmailData) {
		u, err := url.Parse(base)
		if err != nil {
			d.ResetURL = base + "?token=" + url.QueryEscape(token)
			return
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		d.ResetURL = u.String()
	}
}

func WithExpiresAt(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04 MST")
	}
}

func NewPasswordResetData(name, email string, opts ...Option) map[string]any {
	d := EmailData{Name: name, Email: email, RecipientEmail: email, Type: PasswordReset}
	for _, opt := range opts {
		opt(&d)
	}
	return ToMap(d)
}
