package onboarding

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/homelab/internal/config"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestMailer(cfg *config.OnboardingConfig) (*Mailer, *capturedMail) {
	captured := &capturedMail{}
	m := NewMailer(cfg)
	m.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	m.smtpSender = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.auth = auth
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return nil
	}
	return m, captured
}

func testOnboardingConfig() *config.OnboardingConfig {
	return &config.OnboardingConfig{
		SMTP:        config.SMTPConfig{Host: "mail.lan", Port: 25},
		EmailFrom:   "homelab@example.com",
		AutheliaURL: "https://auth.example.com",
	}
}

func TestMailer_SendWelcome(t *testing.T) {
	t.Parallel()

	m, captured := newTestMailer(testOnboardingConfig())

	err := m.SendWelcome(context.Background(), "jdoe@example.com", WelcomeData{
		DisplayName: "Jane Doe",
		Username:    "jdoe",
	})
	require.NoError(t, err)

	assert.Equal(t, "mail.lan:25", captured.addr)
	assert.Nil(t, captured.auth, "no auth without SMTP_USERNAME")
	assert.Equal(t, "homelab@example.com", captured.from)
	assert.Equal(t, []string{"jdoe@example.com"}, captured.to)

	msg := captured.msg
	assert.Contains(t, msg, "From: homelab@example.com\r\n")
	assert.Contains(t, msg, "To: jdoe@example.com\r\n")
	assert.Contains(t, msg, "Subject: Welcome - Set Up Your Account\r\n")
	assert.Contains(t, msg, "MIME-Version: 1.0\r\n")
	assert.Contains(t, msg, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=\"utf-8\"")
	assert.Contains(t, msg, "Content-Type: text/html; charset=\"utf-8\"")

	assert.Contains(t, msg, "Hi Jane Doe,")
	assert.Contains(t, msg, "Your username is 'jdoe'")
	assert.Contains(t, msg, `<a href="https://auth.example.com">https://auth.example.com</a>`)
	assert.Contains(t, msg, `Click on "Reset password"`)

	assert.True(t, strings.HasSuffix(msg, "--\r\n"), "message must end with the closing boundary")
}

func TestMailer_SendWelcomeWithAuth(t *testing.T) {
	t.Parallel()

	cfg := testOnboardingConfig()
	cfg.SMTP.Port = 587
	cfg.SMTP.Username = "relay"
	cfg.SMTP.Password = "relay-pass"

	m, captured := newTestMailer(cfg)
	require.NoError(t, m.SendWelcome(context.Background(), "jdoe@example.com", WelcomeData{Username: "jdoe"}))

	assert.Equal(t, "mail.lan:587", captured.addr)
	assert.NotNil(t, captured.auth)
}

func TestMailer_EscapesHTML(t *testing.T) {
	t.Parallel()

	m, captured := newTestMailer(testOnboardingConfig())
	require.NoError(t, m.SendWelcome(context.Background(), "x@example.com", WelcomeData{
		DisplayName: "<script>alert(1)</script>",
		Username:    "x",
	}))

	assert.Contains(t, captured.msg, "&lt;script&gt;")
}

func TestMailer_HeaderInjection(t *testing.T) {
	t.Parallel()

	m, captured := newTestMailer(testOnboardingConfig())
	require.NoError(t, m.SendWelcome(context.Background(), "jdoe@example.com\r\nBcc: attacker@evil.com", WelcomeData{}))

	assert.NotContains(t, captured.msg, "\r\nBcc:")
	assert.NotContains(t, captured.to[0], "\n")
}

func TestMailer_SendFailure(t *testing.T) {
	t.Parallel()

	m, _ := newTestMailer(testOnboardingConfig())
	m.smtpSender = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("dial tcp: connection refused")
	}

	err := m.SendWelcome(context.Background(), "jdoe@example.com", WelcomeData{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}

func TestMailer_CanceledContext(t *testing.T) {
	t.Parallel()

	m, captured := newTestMailer(testOnboardingConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.SendWelcome(ctx, "jdoe@example.com", WelcomeData{}), context.Canceled)
	assert.Empty(t, captured.msg)
}

func TestSanitizeHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a\r\nb", "a b"},
		{"user@example.com\nBcc: x@evil.com", "user@example.com x@evil.com"},
		{"  many   spaces ", "many spaces"},
		{"X-Mailer: evil", "evil"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeHeader(tt.in), tt.in)
	}
}
