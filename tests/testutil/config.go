package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/homelab/internal/config"
)

// TestConfigBuilder provides a fluent API for building homelab.yaml files.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithBackend("hashicorp-vault").
//	    WithVaultName("lab").
//	    Write()
type TestConfigBuilder struct {
	config  *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig starts from an empty definition; Load applies defaults.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		config:  &config.Definition{},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithBackend sets deployKey.backend.
func (b *TestConfigBuilder) WithBackend(backend string) *TestConfigBuilder {
	b.config.DeployKey.Backend = backend
	return b
}

// WithVaultName sets deployKey.vaultName.
func (b *TestConfigBuilder) WithVaultName(name string) *TestConfigBuilder {
	b.config.DeployKey.VaultName = name
	return b
}

// WithFluxBinary sets deployKey.flux.binary.
func (b *TestConfigBuilder) WithFluxBinary(binary string) *TestConfigBuilder {
	b.config.DeployKey.Flux.Binary = binary
	return b
}

// WithZigbeePaths sets the default device files of zigbee-dedup.
func (b *TestConfigBuilder) WithZigbeePaths(auto, static string) *TestConfigBuilder {
	b.config.Zigbee.DevicesAutoPath = auto
	b.config.Zigbee.DevicesStaticPath = static
	return b
}

// WithPushgateway sets metrics.pushgateway.
func (b *TestConfigBuilder) WithPushgateway(url string) *TestConfigBuilder {
	b.config.Metrics.Pushgateway = url
	return b
}

// Write writes homelab.yaml into a temporary directory and returns its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	path := filepath.Join(b.tempDir, config.DefaultPath)
	data, err := yaml.Marshal(b.config)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// WriteTestConfig writes hand-written YAML to a temporary homelab.yaml.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultPath)
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
