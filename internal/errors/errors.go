package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// BackendError enhances errors from an external system (CLI, SDK, HTTP API)
// with a suggestion when the failure is a known one
func BackendError(backend string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", backend, operation),
		Suggestion: Suggestion(backend, err),
		Err:        err,
	}
}

// WithSuggestion keeps err's message and attaches the backend hint, if one
// applies. Errors that already carry a suggestion are returned unchanged.
func WithSuggestion(backend string, err error) error {
	var userErr UserError
	if err == nil || errors.As(err, &userErr) {
		return err
	}
	suggestion := Suggestion(backend, err)
	if suggestion == "" {
		return err
	}
	return UserError{Message: err.Error(), Suggestion: suggestion, Err: err}
}

// Suggestion returns a remediation hint for a backend failure, or ""
func Suggestion(backend string, err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	switch strings.ToLower(backend) {
	case "1password", "onepassword":
		if strings.Contains(errStr, "not signed in") || strings.Contains(errStr, "not currently signed in") ||
			strings.Contains(errStr, "authorization prompt dismissed") {
			return "Run 'op signin' to authenticate with 1Password"
		}
		if strings.Contains(errStr, "session expired") {
			return "Your 1Password session has expired. Run 'op signin' again"
		}
		if strings.Contains(errStr, "isn't a vault") {
			return "Verify the vault name. Use 'op vault list' to see available vaults"
		}

	case "flux":
		if strings.Contains(errStr, "unknown flag") {
			return "Upgrade the flux CLI: https://fluxcd.io/flux/installation/"
		}
		if strings.Contains(errStr, "private key") || strings.Contains(errStr, "ssh: ") {
			return "Check that the key file holds an unencrypted PEM or OpenSSH private key"
		}

	case "aws", "aws-secretsmanager":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:CreateSecret and secretsmanager:DescribeSecret"
		}

	case "vault", "hashicorp-vault":
		if strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "403") {
			return "Check VAULT_TOKEN and the policy attached to it"
		}

	case "lldap":
		if strings.Contains(errStr, "401") || strings.Contains(errStr, "Authentication failed") {
			return "Check LLDAP_ADMIN_USER and LLDAP_ADMIN_PASSWORD"
		}

	case "smtp":
		if strings.Contains(errStr, "535") {
			return "Check SMTP_USERNAME and SMTP_PASSWORD"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and configuration"
	}

	return ""
}

var installHints = map[string]string{
	"flux": "Install the Flux CLI: https://fluxcd.io/flux/installation/",
	"op":   "Install 1Password CLI: https://developer.1password.com/docs/cli/get-started/",
}

// CommandSuggestion returns the install hint for a missing executable
func CommandSuggestion(command string) string {
	if hint, ok := installHints[command]; ok {
		return hint
	}
	return fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string) error {
	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: CommandSuggestion(command),
	}
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}
	var cmdErr CommandError
	if errors.As(err, &cmdErr) {
		return err
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}
	errStr := rootErr.Error()

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Details:    errStr,
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Details:    errStr,
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
