package providers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/systmms/homelab/internal/logging"
	pkgexec "github.com/systmms/homelab/pkg/exec"
	"github.com/systmms/homelab/pkg/provider"
)

// OnePasswordCategory is the item category deploy keys are stored under.
const OnePasswordCategory = "Secure Note"

// onePasswordItemNotFound matches op's answers for an unknown item title.
// Account or vault level "not found" messages must not match.
var onePasswordItemNotFound = regexp.MustCompile(`(?i)isn't an item|no item found|\bitem\b[^.\n]*\bnot found`)

// OnePasswordError reports a failed op CLI call other than "item not found".
type OnePasswordError struct {
	Operation string
	Stderr    string
	Err       error
}

func (e *OnePasswordError) Error() string {
	msg := fmt.Sprintf("Failed to %s 1Password item", e.Operation)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		return msg + ": " + stderr
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *OnePasswordError) Unwrap() error { return e.Err }

// OnePasswordProvider stores deploy keys through the 1Password CLI
type OnePasswordProvider struct {
	binary   string
	account  string
	executor pkgexec.CommandExecutor
}

// NewOnePasswordProvider creates a 1Password provider running binary (normally "op").
// account is optional and passed as --account when set.
func NewOnePasswordProvider(binary, account string, executor pkgexec.CommandExecutor) *OnePasswordProvider {
	if binary == "" {
		binary = "op"
	}
	if executor == nil {
		executor = pkgexec.DefaultExecutor()
	}
	return &OnePasswordProvider{
		binary:   binary,
		account:  account,
		executor: executor,
	}
}

func (op *OnePasswordProvider) Name() string {
	return "1Password"
}

func (op *OnePasswordProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		AtomicCreate:     false, // op happily creates duplicates with the same title
		RequiredCommands: []string{op.binary},
	}
}

// Exists runs `op item get`. Only a "not found" answer maps to false; any
// other failure (not signed in, unknown vault) is returned as an error so it
// cannot be mistaken for an absent item.
func (op *OnePasswordProvider) Exists(ctx context.Context, ref provider.ItemRef) (bool, error) {
	args := op.withAccount([]string{
		"item", "get", ref.Name,
		fmt.Sprintf("--vault=%s", ref.Vault),
		"--format=json",
	})

	_, stderr, err := op.executor.Execute(ctx, op.binary, args...)
	if err == nil {
		return true, nil
	}
	if isOnePasswordNotFound(string(stderr)) {
		return false, nil
	}
	return false, &OnePasswordError{Operation: "look up", Stderr: string(stderr), Err: err}
}

// Create runs `op item create` with one concealed and four text fields.
func (op *OnePasswordProvider) Create(ctx context.Context, item provider.Item) error {
	args := op.withAccount([]string{
		"item", "create",
		fmt.Sprintf("--vault=%s", item.Vault),
		fmt.Sprintf("--category=%s", OnePasswordCategory),
		fmt.Sprintf("--title=%s", item.Name),
		assignment(provider.FieldIdentity, "password", item.Identity),
		assignment(provider.FieldIdentityPub, "text", item.IdentityPub),
		assignment(provider.FieldKnownHosts, "text", item.KnownHosts),
		assignment(provider.FieldRepoURL, "text", item.RepoURL),
		assignment(provider.FieldUsecaseName, "text", item.UsecaseName),
	})

	_, stderr, err := op.executor.Execute(ctx, op.binary, args...)
	if err != nil {
		return &OnePasswordError{
			Operation: "create",
			Stderr:    logging.Redact(string(stderr), []string{item.Identity}),
			Err:       err,
		}
	}
	return nil
}

func (op *OnePasswordProvider) withAccount(args []string) []string {
	if op.account != "" {
		args = append(args, "--account", op.account)
	}
	return args
}

// assignment builds an op field assignment statement: label[type]=value.
// Dots in labels separate sections in op syntax and must be escaped.
func assignment(label, fieldType, value string) string {
	escaped := strings.ReplaceAll(label, ".", `\.`)
	return fmt.Sprintf("%s[%s]=%s", escaped, fieldType, value)
}

func isOnePasswordNotFound(stderr string) bool {
	return onePasswordItemNotFound.MatchString(stderr)
}
