package messaging

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/pkg/mailer"
	mailtpl "github.com/oksasatya/account-service/pkg/mailer/templates"
)

type jobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// EmailNotifier queues templated emails for the email worker.
type EmailNotifier struct {
	pub         jobPublisher
	AppName     string
	CompanyName string
	SupportURL  string
	ResetURL    string
	TokenTTL    time.Duration
	Enabled     bool
	Logger      *logrus.Logger
	Now         func() time.Time
}

func NewEmailNotifier(pub jobPublisher, resetURL string, tokenTTL time.Duration, enabled bool, logger *logrus.Logger) *EmailNotifier {
	return &EmailNotifier{pub: pub, ResetURL: resetURL, TokenTTL: tokenTTL, Enabled: enabled, Logger: logger, Now: time.Now}
}

func (n *EmailNotifier) SendPasswordReset(ctx context.Context, to, name, token string) error {
	if !n.Enabled {
		if n.Logger != nil {
			n.Logger.WithField("to", to).Info("mail sending disabled, password reset email skipped")
		}
		return nil
	}
	job := mailer.EmailJob{
		To:       to,
		Template: mailtpl.PasswordReset,
		Data: mailtpl.NewPasswordResetData(name, to,
			mailtpl.WithAppName(n.AppName),
			mailtpl.WithCompany(n.CompanyName, n.SupportURL),
			mailtpl.WithResetToken(n.ResetURL, token),
			mailtpl.WithExpiresAt(n.Now().Add(n.TokenTTL)),
		),
	}
	return n.pub.PublishJSON(ctx, job)
}
