package providers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	homelabcfg "github.com/systmms/homelab/internal/config"
	"github.com/systmms/homelab/internal/providers"
	"github.com/systmms/homelab/pkg/provider"
	"github.com/systmms/homelab/tests/fakes"
	"github.com/systmms/homelab/tests/testutil"
)

func newVaultProvider(t *testing.T, kv *fakes.FakeKVClient) *providers.HashiCorpVaultProvider {
	t.Helper()

	p, err := providers.NewHashiCorpVaultProvider(homelabcfg.HashiCorpVaultConfig{Mount: "secret"},
		providers.WithKVClient(kv))
	require.NoError(t, err)
	return p
}

func TestHashiCorpVaultProviderContract(t *testing.T) {
	testutil.RunProviderContractTests(t, testutil.ProviderTestCase{
		Name:     "hashicorp-vault",
		Provider: newVaultProvider(t, fakes.NewFakeKVClient()),
		Vault:    "homelab-k8s",
	})
}

func TestHashiCorpVaultProvider_Exists(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKVClient()
	kv.Seed("homelab-k8s/deploy_key_media", map[string]interface{}{"identity": "x"})
	p := newVaultProvider(t, kv)

	exists, err := p.Exists(context.Background(), provider.ItemRef{Name: "deploy_key_media", Vault: "homelab-k8s"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = p.Exists(context.Background(), provider.ItemRef{Name: "deploy_key_none", Vault: "homelab-k8s"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHashiCorpVaultProvider_ExistsPermissionDenied(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKVClient()
	kv.Errors["homelab-k8s/deploy_key_media"] = errors.New("Code: 403. Errors:\n\n* permission denied")
	p := newVaultProvider(t, kv)

	_, err := p.Exists(context.Background(), provider.ItemRef{Name: "deploy_key_media", Vault: "homelab-k8s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read secret/homelab-k8s/deploy_key_media")
	assert.Contains(t, err.Error(), "permission denied")
}

func TestHashiCorpVaultProvider_Create(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKVClient()
	p := newVaultProvider(t, kv)

	ref := provider.ItemRef{Name: "deploy_key_media", Vault: "/homelab-k8s/"}
	item := testutil.ContractItem(ref)
	require.NoError(t, p.Create(context.Background(), item))

	stored := kv.Stored("homelab-k8s/deploy_key_media")
	require.NotNil(t, stored)
	for k, v := range item.Fields() {
		assert.Equal(t, v, stored[k], k)
	}

	assert.ErrorIs(t, p.Create(context.Background(), item), provider.ErrItemExists)
	assert.Equal(t, 2, kv.PutCalls)
}

func TestHashiCorpVaultProvider_DefaultMount(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeKVClient()
	kv.Errors["lab/deploy_key_x"] = errors.New("boom")

	p, err := providers.NewHashiCorpVaultProvider(homelabcfg.HashiCorpVaultConfig{Mount: " / "}, providers.WithKVClient(kv))
	require.NoError(t, err)

	_, err = p.Exists(context.Background(), provider.ItemRef{Name: "deploy_key_x", Vault: "lab"})
	assert.Contains(t, err.Error(), "secret/lab/deploy_key_x")
	assert.Equal(t, "HashiCorp Vault", p.Name())
	assert.True(t, p.Capabilities().AtomicCreate)
}
