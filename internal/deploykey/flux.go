package deploykey

import (
	"context"
	"fmt"

	pkgexec "github.com/systmms/homelab/pkg/exec"
)

// SecretGenerator produces a Kubernetes Secret manifest holding an SSH
// identity for a git repository.
type SecretGenerator interface {
	// GenerateFromKey builds the manifest around an existing private key.
	GenerateFromKey(ctx context.Context, gitURL string, key []byte) (string, error)
	// GenerateWithNewKey builds the manifest around a freshly generated
	// ECDSA P-521 key.
	GenerateWithNewKey(ctx context.Context, gitURL string) (string, error)
}

// FluxCLI generates secrets with `flux create secret git --export`, which
// prints the manifest without touching a cluster.
type FluxCLI struct {
	binary     string
	secretName string
	executor   pkgexec.CommandExecutor
}

// NewFluxCLI creates a generator that runs binary. secretName is the
// metadata.name flux puts on the manifest.
func NewFluxCLI(binary, secretName string, executor pkgexec.CommandExecutor) *FluxCLI {
	if executor == nil {
		executor = pkgexec.DefaultExecutor()
	}
	return &FluxCLI{
		binary:     binary,
		secretName: secretName,
		executor:   executor,
	}
}

// Binary returns the executable name, for availability checks.
func (f *FluxCLI) Binary() string {
	return f.binary
}

// GenerateFromKey pipes key to flux on stdin.
func (f *FluxCLI) GenerateFromKey(ctx context.Context, gitURL string, key []byte) (string, error) {
	args := append(f.baseArgs(gitURL), "--private-key-file=-")
	stdout, stderr, err := f.executor.ExecuteWithInput(ctx, key, f.binary, args...)
	if err != nil {
		return "", &FluxSecretError{Stderr: string(stderr), ExitCode: pkgexec.ExitCode(err), Err: err}
	}
	return string(stdout), nil
}

// GenerateWithNewKey asks flux for a new ECDSA P-521 key.
func (f *FluxCLI) GenerateWithNewKey(ctx context.Context, gitURL string) (string, error) {
	args := append(f.baseArgs(gitURL), "--ssh-key-algorithm=ecdsa", "--ssh-ecdsa-curve=p521")
	stdout, stderr, err := f.executor.Execute(ctx, f.binary, args...)
	if err != nil {
		return "", &FluxSecretError{Stderr: string(stderr), ExitCode: pkgexec.ExitCode(err), Err: err}
	}
	return string(stdout), nil
}

func (f *FluxCLI) baseArgs(gitURL string) []string {
	return []string{
		"create", "secret", "git", f.secretName,
		"--export",
		fmt.Sprintf("--url=%s", gitURL),
	}
}
