package errors_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/homelab/internal/errors"
)

func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "1Password item 'deploy_key_media' already exists in vault 'homelab-k8s'",
		Details:    "existing items are never overwritten",
		Suggestion: "Delete the existing item or use a different usecase name",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "already exists")
	assert.Contains(t, errMsg, "Details: existing items are never overwritten")
	assert.Contains(t, errMsg, "💡 Try: Delete the existing item")
}

func TestUserErrorFallsBackToWrappedMessage(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("dial tcp: connection refused")
	err := errors.UserError{Err: inner}

	assert.Equal(t, "dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "deployKey.backend",
		Value:      "keepass",
		Message:    "unknown vault backend",
		Suggestion: "Use one of: onepassword, aws-secretsmanager, hashicorp-vault",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "deployKey.backend")
	assert.Contains(t, errMsg, "keepass")
	assert.Contains(t, errMsg, "unknown vault backend")
	assert.Contains(t, errMsg, "onepassword")
}

func TestCommandErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.CommandError{
		Command:    "op item create",
		ExitCode:   1,
		Message:    "not signed in",
		Suggestion: "Run 'op signin'",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "op item create")
	assert.Contains(t, errMsg, "exit code: 1")
	assert.Contains(t, errMsg, "not signed in")
}

func TestBackendErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend    string
		err        string
		suggestion string
	}{
		{"onepassword", "[ERROR] not signed in", "op signin"},
		{"onepassword", "\"homelab\" isn't a vault in this account", "op vault list"},
		{"flux", "Error: unknown flag: --ssh-ecdsa-curve", "Upgrade the flux CLI"},
		{"aws-secretsmanager", "AccessDenied: not authorized", "secretsmanager:CreateSecret"},
		{"hashicorp-vault", "Code: 403. permission denied", "VAULT_TOKEN"},
		{"lldap", "Authentication failed (401)", "LLDAP_ADMIN_PASSWORD"},
		{"smtp", "535 authentication failed", "SMTP_PASSWORD"},
		{"anything", "i/o timeout", "timed out"},
		{"anything", "dial tcp: connection refused", "Unable to connect"},
	}

	for _, tt := range tests {
		t.Run(tt.backend+"/"+tt.err, func(t *testing.T) {
			err := errors.BackendError(tt.backend, "test", fmt.Errorf("%s", tt.err))
			assert.Contains(t, err.Error(), tt.suggestion)
		})
	}
}

func TestWithSuggestion(t *testing.T) {
	t.Parallel()

	t.Run("known failure keeps the message", func(t *testing.T) {
		inner := fmt.Errorf("Failed to look up 1Password item: [ERROR] You are not currently signed in")
		err := errors.WithSuggestion("onepassword", inner)

		var userErr errors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Equal(t, "Run 'op signin' to authenticate with 1Password", userErr.Suggestion)
		assert.Contains(t, err.Error(), "Failed to look up 1Password item")
		assert.ErrorIs(t, err, inner)
	})

	t.Run("no hint returns the error unchanged", func(t *testing.T) {
		inner := fmt.Errorf("something odd")
		assert.Same(t, inner, errors.WithSuggestion("onepassword", inner))
	})

	t.Run("existing suggestion wins", func(t *testing.T) {
		wrapped := fmt.Errorf("read key: %w", errors.UserError{Message: "timeout reading key file", Suggestion: "use --generate-key"})
		assert.Equal(t, wrapped, errors.WithSuggestion("anything", wrapped))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, errors.WithSuggestion("flux", nil))
	})
}

func TestWrapCommandNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command string
		hint    string
	}{
		{"flux", "fluxcd.io"},
		{"op", "developer.1password.com"},
		{"kubectl", "Make sure 'kubectl' is installed"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			err := errors.WrapCommandNotFound(tt.command)
			var cmdErr errors.CommandError
			require.ErrorAs(t, err, &cmdErr)
			assert.Equal(t, tt.command, cmdErr.Command)
			assert.Contains(t, err.Error(), tt.hint)
		})
	}
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, errors.SimplifyError(nil))

	_, statErr := os.Stat("/definitely/not/here")
	simplified := errors.SimplifyError(fmt.Errorf("reading key: %w", statErr))
	assert.Contains(t, simplified.Error(), "File or directory not found")
	assert.Contains(t, simplified.Error(), "no such file or directory")

	userErr := errors.UserError{Message: "already friendly"}
	assert.Equal(t, userErr, errors.SimplifyError(userErr))

	plain := fmt.Errorf("something odd")
	assert.Equal(t, plain, errors.SimplifyError(plain))
}
