package config

import (
	"fmt"
	"os"
	"strings"

	dserrors "github.com/systmms/homelab/internal/errors"
	"github.com/systmms/homelab/internal/logging"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is the config file looked up when --config is not given.
	DefaultPath = "homelab.yaml"

	DefaultVaultName       = "homelab-k8s"
	DefaultBackend         = "onepassword"
	DefaultFluxBinary      = "flux"
	DefaultFluxSecretName  = "setup-deploy-key"
	DefaultOnePasswordCLI  = "op"
	DefaultVaultMount      = "secret"
	DefaultAWSRegion       = "us-east-1"
	DefaultMetricsJobLabel = "homelab"
)

// Backends lists the vault backends deploy-key can write to.
var Backends = []string{"onepassword", "aws-secretsmanager", "hashicorp-vault"}

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the homelab.yaml structure
type Definition struct {
	Version   int             `yaml:"version"`
	DeployKey DeployKeyConfig `yaml:"deployKey"`
	Zigbee    ZigbeeConfig    `yaml:"zigbee"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DeployKeyConfig configures the deploy-key pipeline
type DeployKeyConfig struct {
	VaultName      string               `yaml:"vaultName"`
	Backend        string               `yaml:"backend"`
	Flux           FluxConfig           `yaml:"flux"`
	OnePassword    OnePasswordConfig    `yaml:"onepassword"`
	AWS            AWSConfig            `yaml:"aws"`
	HashiCorpVault HashiCorpVaultConfig `yaml:"hashicorpVault"`
}

// FluxConfig configures the flux CLI invocation
type FluxConfig struct {
	Binary     string `yaml:"binary"`
	SecretName string `yaml:"secretName"`
}

// OnePasswordConfig configures the op CLI backend
type OnePasswordConfig struct {
	Binary  string `yaml:"binary"`
	Account string `yaml:"account,omitempty"`
}

// AWSConfig configures the AWS Secrets Manager backend
type AWSConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// HashiCorpVaultConfig configures the HashiCorp Vault KV v2 backend.
// Address and token fall back to VAULT_ADDR and VAULT_TOKEN.
type HashiCorpVaultConfig struct {
	Address   string `yaml:"address,omitempty"`
	Mount     string `yaml:"mount"`
	Namespace string `yaml:"namespace,omitempty"`
}

// ZigbeeConfig holds default device file paths for zigbee-dedup
type ZigbeeConfig struct {
	DevicesAutoPath   string `yaml:"devicesAutoPath,omitempty"`
	DevicesStaticPath string `yaml:"devicesStaticPath,omitempty"`
}

// MetricsConfig configures the optional Prometheus Pushgateway
type MetricsConfig struct {
	Pushgateway string `yaml:"pushgateway,omitempty"`
	Job         string `yaml:"job,omitempty"`
}

// Defaults returns a Definition with every default applied
func Defaults() *Definition {
	def := &Definition{}
	def.applyDefaults()
	return def
}

func (d *Definition) applyDefaults() {
	dk := &d.DeployKey
	if dk.VaultName == "" {
		dk.VaultName = DefaultVaultName
	}
	if dk.Backend == "" {
		dk.Backend = DefaultBackend
	}
	if dk.Flux.Binary == "" {
		dk.Flux.Binary = DefaultFluxBinary
	}
	if dk.Flux.SecretName == "" {
		dk.Flux.SecretName = DefaultFluxSecretName
	}
	if dk.OnePassword.Binary == "" {
		dk.OnePassword.Binary = DefaultOnePasswordCLI
	}
	if dk.AWS.Region == "" {
		dk.AWS.Region = DefaultAWSRegion
	}
	if dk.HashiCorpVault.Mount == "" {
		dk.HashiCorpVault.Mount = DefaultVaultMount
	}
	if d.Metrics.Job == "" {
		d.Metrics.Job = DefaultMetricsJobLabel
	}
}

// Load reads and parses the homelab.yaml file. A missing file is not an
// error: every setting has a default.
func (c *Config) Load() error {
	if c.Path == "" {
		c.Path = DefaultPath
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Definition = Defaults()
			return nil
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Message:    fmt.Sprintf("invalid YAML syntax in configuration file: %v", err),
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: fmt.Sprintf("Set 'version: 0' at the top of %s", c.Path),
		}
	}

	def.applyDefaults()
	if err := ValidateBackend(def.DeployKey.Backend); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

// ValidateBackend checks name against the supported vault backends
func ValidateBackend(name string) error {
	for _, b := range Backends {
		if b == name {
			return nil
		}
	}
	return dserrors.ConfigError{
		Field:      "deployKey.backend",
		Value:      name,
		Message:    "unknown vault backend",
		Suggestion: "Use one of: " + strings.Join(Backends, ", "),
	}
}

// Def returns the loaded definition, or defaults if Load was never called
func (c *Config) Def() *Definition {
	if c.Definition == nil {
		c.Definition = Defaults()
	}
	return c.Definition
}
