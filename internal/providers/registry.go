package providers

import (
	"context"
	"fmt"

	homelabcfg "github.com/systmms/homelab/internal/config"
	pkgexec "github.com/systmms/homelab/pkg/exec"
	"github.com/systmms/homelab/pkg/provider"
)

// Registry manages provider creation by backend name
type Registry struct {
	factories map[string]ProviderFactory
}

// ProviderFactory creates a provider instance from configuration
type ProviderFactory func(ctx context.Context, cfg homelabcfg.DeployKeyConfig, executor pkgexec.CommandExecutor) (provider.Provider, error)

// NewRegistry creates a new provider registry with built-in providers
func NewRegistry() *Registry {
	registry := &Registry{
		factories: make(map[string]ProviderFactory),
	}

	registry.RegisterFactory("onepassword", newOnePasswordFactory)
	registry.RegisterFactory("aws-secretsmanager", newAWSSecretsManagerFactory)
	registry.RegisterFactory("hashicorp-vault", newHashiCorpVaultFactory)

	return registry
}

// RegisterFactory registers a provider factory for a given backend name
func (r *Registry) RegisterFactory(backend string, factory ProviderFactory) {
	r.factories[backend] = factory
}

// Has reports whether a factory is registered for backend
func (r *Registry) Has(backend string) bool {
	_, ok := r.factories[backend]
	return ok
}

// CreateProvider creates the provider selected by cfg.Backend
func (r *Registry) CreateProvider(ctx context.Context, cfg homelabcfg.DeployKeyConfig, executor pkgexec.CommandExecutor) (provider.Provider, error) {
	factory, exists := r.factories[cfg.Backend]
	if !exists {
		return nil, fmt.Errorf("unknown vault backend: %s", cfg.Backend)
	}
	return factory(ctx, cfg, executor)
}

func newOnePasswordFactory(_ context.Context, cfg homelabcfg.DeployKeyConfig, executor pkgexec.CommandExecutor) (provider.Provider, error) {
	return NewOnePasswordProvider(cfg.OnePassword.Binary, cfg.OnePassword.Account, executor), nil
}

func newAWSSecretsManagerFactory(ctx context.Context, cfg homelabcfg.DeployKeyConfig, _ pkgexec.CommandExecutor) (provider.Provider, error) {
	return NewAWSSecretsManagerProvider(ctx, cfg.AWS)
}

func newHashiCorpVaultFactory(_ context.Context, cfg homelabcfg.DeployKeyConfig, _ pkgexec.CommandExecutor) (provider.Provider, error) {
	return NewHashiCorpVaultProvider(cfg.HashiCorpVault)
}
