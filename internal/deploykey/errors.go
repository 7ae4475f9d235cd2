package deploykey

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed usecase name or git URL.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s format: '%s'. %s", e.Field, e.Value, e.Reason)
}

// CommandNotFoundError reports a required executable missing from PATH.
type CommandNotFoundError struct {
	Name string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("%s command not found", e.Name)
}

// FluxSecretError reports a failed flux invocation. ExitCode is -1 when flux
// did not run to completion.
type FluxSecretError struct {
	Stderr   string
	ExitCode int
	Err      error
}

func (e *FluxSecretError) Error() string {
	msg := "Failed to generate flux secret"
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		return msg + ": " + stderr
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *FluxSecretError) Unwrap() error { return e.Err }

// SecretDataError reports a manifest that could not be parsed or lacks a
// required stringData field. Manifest carries the raw flux output.
type SecretDataError struct {
	Reason   string
	Manifest string
	Err      error
}

func (e *SecretDataError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s. Generated flux output:\n%s", msg, e.Manifest)
}

func (e *SecretDataError) Unwrap() error { return e.Err }

// ItemExistsError reports that the target vault item is already present.
// The pipeline never overwrites.
type ItemExistsError struct {
	Backend string
	Item    string
	Vault   string
}

func (e *ItemExistsError) Error() string {
	return fmt.Sprintf("%s item '%s' already exists in vault '%s'", e.Backend, e.Item, e.Vault)
}

// Suggestion is the remediation printed after an ItemExistsError.
func (e *ItemExistsError) Suggestion() string {
	return "Please delete the existing item or use a different usecase name"
}
