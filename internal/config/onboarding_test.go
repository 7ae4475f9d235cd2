package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	dserrors "github.com/systmms/homelab/internal/errors"
)

var onboardingVars = []string{
	"LLDAP_URL", "LLDAP_ADMIN_USER", "LLDAP_ADMIN_PASSWORD",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD",
	"EMAIL_FROM", "AUTHELIA_URL",
}

// isolateEnv clears onboarding variables and moves away from any .env file.
func isolateEnv(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	t.Chdir(t.TempDir())
	for _, name := range onboardingVars {
		t.Setenv(name, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LLDAP_URL", "http://lldap.lan:17170/")
	t.Setenv("LLDAP_ADMIN_USER", "admin")
	t.Setenv("LLDAP_ADMIN_PASSWORD", "hunter22")
	t.Setenv("SMTP_HOST", "smtp.lan")
	t.Setenv("EMAIL_FROM", "homelab@example.com")
	t.Setenv("AUTHELIA_URL", "https://auth.example.com")
}

func TestLoadOnboarding(t *testing.T) {
	isolateEnv(t)
	setRequired(t)
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_USERNAME", "mailer")

	cfg, err := LoadOnboarding()
	require.NoError(t, err)

	assert.Equal(t, "http://lldap.lan:17170", cfg.LLDAPURL)
	assert.Equal(t, "admin", cfg.LLDAPAdminUser)
	assert.Equal(t, "hunter22", cfg.LLDAPAdminPassword)
	assert.Equal(t, "smtp.lan", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "mailer", cfg.SMTP.Username)
	assert.Equal(t, "homelab@example.com", cfg.EmailFrom)
	assert.Equal(t, "https://auth.example.com", cfg.AutheliaURL)
}

func TestLoadOnboarding_DefaultPort(t *testing.T) {
	isolateEnv(t)
	setRequired(t)

	cfg, err := LoadOnboarding()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.SMTP.Port)
}

func TestLoadOnboarding_InvalidPort(t *testing.T) {
	isolateEnv(t)
	setRequired(t)
	t.Setenv("SMTP_PORT", "smtp")

	_, err := LoadOnboarding()
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "SMTP_PORT", cfgErr.Field)
}

func TestLoadOnboarding_ReportsAllMissing(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LLDAP_URL", "http://lldap.lan:17170")

	_, err := LoadOnboarding()
	require.Error(t, err)
	for _, name := range []string{"LLDAP_ADMIN_USER", "LLDAP_ADMIN_PASSWORD", "SMTP_HOST", "EMAIL_FROM", "AUTHELIA_URL"} {
		assert.Contains(t, err.Error(), name)
	}
	assert.NotContains(t, err.Error(), "LLDAP_URL,")
}

func TestLoadOnboarding_KeyringFallback(t *testing.T) {
	isolateEnv(t)
	setRequired(t)
	t.Setenv("LLDAP_ADMIN_PASSWORD", "")
	require.NoError(t, keyring.Set(KeyringService, "admin", "from-keyring"))

	cfg, err := LoadOnboarding()
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", cfg.LLDAPAdminPassword)
}
