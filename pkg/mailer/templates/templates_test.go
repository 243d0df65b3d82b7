package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPasswordReset(t *testing.T) {
	data := NewPasswordResetData("Ann", "ann@x.io",
		WithAppName("Accounts"),
		WithCompany("Acme", "https://acme.test/help"),
		WithResetToken("https://acme.test/reset?lang=en", "tok123"),
		WithExpiresAt(time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)),
	)

	subject, text, html, err := Render(PasswordReset, data)
	require.NoError(t, err)
	assert.Equal(t, "Reset your Accounts password", subject)
	assert.Contains(t, text, "https://acme.test/reset?lang=en&token=tok123")
	assert.Contains(t, text, "02 January 2024, 15:04 UTC")
	assert.Contains(t, text, "Need help? https://acme.test/help")
	assert.Contains(t, html, "https://acme.test/reset?lang=en&amp;token=tok123")
	assert.Contains(t, html, "<strong>ann@x.io</strong>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, _, err := Render("nope", map[string]any{})
	assert.Error(t, err)
}
