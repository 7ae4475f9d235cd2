package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"

	homelabcfg "github.com/systmms/homelab/internal/config"
	"github.com/systmms/homelab/pkg/provider"
)

// KVClient is the subset of *vaultapi.KVv2 used by HashiCorpVaultProvider.
type KVClient interface {
	Get(ctx context.Context, secretPath string) (*vaultapi.KVSecret, error)
	Put(ctx context.Context, secretPath string, data map[string]interface{}, opts ...vaultapi.KVOption) (*vaultapi.KVSecret, error)
}

// HashiCorpVaultProvider stores deploy keys in a KV v2 engine at
// <mount>/<vault>/<item>.
type HashiCorpVaultProvider struct {
	kv    KVClient
	mount string
}

// VaultOption is a functional option for configuring the provider
type VaultOption func(*HashiCorpVaultProvider)

// WithKVClient sets a custom KV client (for testing)
func WithKVClient(kv KVClient) VaultOption {
	return func(p *HashiCorpVaultProvider) {
		p.kv = kv
	}
}

// NewHashiCorpVaultProvider creates a KV v2 provider. The client honours
// VAULT_ADDR and VAULT_TOKEN; cfg.Address overrides VAULT_ADDR.
func NewHashiCorpVaultProvider(cfg homelabcfg.HashiCorpVaultConfig, opts ...VaultOption) (*HashiCorpVaultProvider, error) {
	mount := strings.Trim(strings.TrimSpace(cfg.Mount), "/")
	if mount == "" {
		mount = homelabcfg.DefaultVaultMount
	}
	p := &HashiCorpVaultProvider{mount: mount}

	for _, opt := range opts {
		opt(p)
	}

	if p.kv == nil {
		apiCfg := vaultapi.DefaultConfig()
		if apiCfg.Error != nil {
			return nil, fmt.Errorf("failed to read vault environment: %w", apiCfg.Error)
		}
		if addr := strings.TrimSpace(cfg.Address); addr != "" {
			apiCfg.Address = addr
		}
		client, err := vaultapi.NewClient(apiCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create vault client: %w", err)
		}
		if ns := strings.TrimSpace(cfg.Namespace); ns != "" {
			client.SetNamespace(ns)
		}
		p.kv = client.KVv2(mount)
	}

	return p, nil
}

func (p *HashiCorpVaultProvider) Name() string {
	return "HashiCorp Vault"
}

func (p *HashiCorpVaultProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{AtomicCreate: true}
}

// SecretPath returns the KV path of ref, relative to the mount.
func (p *HashiCorpVaultProvider) SecretPath(ref provider.ItemRef) string {
	return strings.Trim(ref.Vault, "/") + "/" + ref.Name
}

func (p *HashiCorpVaultProvider) Exists(ctx context.Context, ref provider.ItemRef) (bool, error) {
	_, err := p.kv.Get(ctx, p.SecretPath(ref))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, vaultapi.ErrSecretNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to read %s/%s: %w", p.mount, p.SecretPath(ref), err)
}

// Create writes with check-and-set 0, which vault only accepts when the key
// does not exist yet.
func (p *HashiCorpVaultProvider) Create(ctx context.Context, item provider.Item) error {
	data := make(map[string]interface{}, 5)
	for k, v := range item.Fields() {
		data[k] = v
	}

	_, err := p.kv.Put(ctx, p.SecretPath(item.ItemRef), data, vaultapi.WithCheckAndSet(0))
	if err != nil {
		if strings.Contains(err.Error(), "check-and-set") {
			return provider.ErrItemExists
		}
		return fmt.Errorf("failed to write %s/%s: %w", p.mount, p.SecretPath(item.ItemRef), err)
	}
	return nil
}
