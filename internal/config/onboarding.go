package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"

	dserrors "github.com/systmms/homelab/internal/errors"
)

// KeyringService is the OS keyring service consulted for the lldap admin
// password when LLDAP_ADMIN_PASSWORD is unset.
const KeyringService = "homelab-lldap"

// OnboardingConfig holds the lldap, SMTP and Authelia settings used by
// onboard-user. It is read from the environment only.
type OnboardingConfig struct {
	LLDAPURL           string
	LLDAPAdminUser     string
	LLDAPAdminPassword string

	SMTP SMTPConfig

	// EmailFrom is the sender address of onboarding emails.
	EmailFrom string

	// AutheliaURL is where new users reset their password.
	AutheliaURL string
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// LoadOnboarding reads OnboardingConfig from the environment after loading
// the nearest .env file. All missing required variables are reported at once.
func LoadOnboarding() (*OnboardingConfig, error) {
	loadDotEnv()

	cfg := &OnboardingConfig{
		LLDAPURL:           strings.TrimSuffix(env.GetString("LLDAP_URL", ""), "/"),
		LLDAPAdminUser:     env.GetString("LLDAP_ADMIN_USER", ""),
		LLDAPAdminPassword: env.GetString("LLDAP_ADMIN_PASSWORD", ""),
		SMTP: SMTPConfig{
			Host:     env.GetString("SMTP_HOST", ""),
			Username: env.GetString("SMTP_USERNAME", ""),
			Password: env.GetString("SMTP_PASSWORD", ""),
		},
		EmailFrom:   env.GetString("EMAIL_FROM", ""),
		AutheliaURL: env.GetString("AUTHELIA_URL", ""),
	}

	if cfg.LLDAPAdminPassword == "" && cfg.LLDAPAdminUser != "" {
		secret, err := keyring.Get(KeyringService, cfg.LLDAPAdminUser)
		if err == nil {
			cfg.LLDAPAdminPassword = secret
		} else if !errors.Is(err, keyring.ErrNotFound) {
			return nil, dserrors.UserError{
				Message:    "Failed to read lldap admin password from the OS keyring",
				Details:    err.Error(),
				Suggestion: "Set LLDAP_ADMIN_PASSWORD instead",
				Err:        err,
			}
		}
	}

	var missing []string
	for _, req := range []struct {
		name  string
		value string
	}{
		{"LLDAP_URL", cfg.LLDAPURL},
		{"LLDAP_ADMIN_USER", cfg.LLDAPAdminUser},
		{"LLDAP_ADMIN_PASSWORD", cfg.LLDAPAdminPassword},
		{"SMTP_HOST", cfg.SMTP.Host},
		{"EMAIL_FROM", cfg.EmailFrom},
		{"AUTHELIA_URL", cfg.AutheliaURL},
	} {
		if req.value == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, dserrors.ConfigError{
			Message:    "missing required environment variables: " + strings.Join(missing, ", "),
			Suggestion: "Export them or add them to a .env file",
		}
	}

	portStr := env.GetString("SMTP_PORT", "")
	if portStr == "" {
		portStr = "25"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, dserrors.ConfigError{
			Field:   "SMTP_PORT",
			Value:   portStr,
			Message: "SMTP_PORT must be a valid integer",
		}
	}
	cfg.SMTP.Port = port

	return cfg, nil
}

// loadDotEnv searches for a .env file from the current directory up to the
// root and loads the first one found. Variables already set win.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
