package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	vaultapi "github.com/hashicorp/vault/api"

	homelabcfg "github.com/systmms/homelab/internal/config"
)

// VaultDevToken is the root token of the dev-mode vault container.
const VaultDevToken = "test-root-token"

// DockerTestEnv manages Docker Compose lifecycle for integration tests
type DockerTestEnv struct {
	t           *testing.T
	composePath string
	services    []string
	started     bool
	projectName string
	ports       map[string]map[int]int // service -> containerPort -> hostPort
}

// servicePorts lists the container ports each compose service publishes.
var servicePorts = map[string][]int{
	"vault":      {8200},
	"localstack": {4566},
	"mailhog":    {1025, 8025},
}

// StartDockerEnv brings up services from tests/integration/docker-compose.yml
// and tears them down when the test ends.
func StartDockerEnv(t *testing.T, services []string) *DockerTestEnv {
	t.Helper()

	SkipIfDockerUnavailable(t)
	clearBackendEnvVars(t)

	composePath := findDockerComposePath(t)
	if composePath == "" {
		t.Fatal("docker-compose.yml not found in tests/integration/")
	}

	env := &DockerTestEnv{
		t:           t,
		composePath: composePath,
		services:    services,
		projectName: fmt.Sprintf("homelab-test-%d", time.Now().UnixNano()),
	}

	env.start()
	t.Cleanup(env.Stop)

	if err := env.WaitForHealthy(60 * time.Second); err != nil {
		t.Fatalf("Docker services failed to become healthy: %v", err)
	}
	if err := env.discoverPorts(); err != nil {
		t.Fatalf("Failed to discover ports: %v", err)
	}

	return env
}

// clearBackendEnvVars unsets variables the vault and AWS clients read, so
// they cannot point a test at a real server.
func clearBackendEnvVars(t *testing.T) {
	t.Helper()

	for _, name := range []string{
		"VAULT_ADDR",
		"VAULT_TOKEN",
		"VAULT_NAMESPACE",
		"AWS_ENDPOINT_URL",
		"AWS_ENDPOINT_URL_SECRETS_MANAGER",
		"AWS_PROFILE",
	} {
		if _, ok := os.LookupEnv(name); ok {
			t.Setenv(name, "")
			_ = os.Unsetenv(name)
		}
	}
}

// SkipIfDockerUnavailable skips the test if Docker is not available
func SkipIfDockerUnavailable(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if !IsDockerAvailable() {
		t.Skip("Docker not available, skipping integration test")
	}
}

// IsDockerAvailable checks if Docker and the compose plugin are usable
func IsDockerAvailable() bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	if err := exec.Command("docker", "ps").Run(); err != nil {
		return false
	}
	return exec.Command("docker", "compose", "version").Run() == nil
}

func (e *DockerTestEnv) compose(args ...string) *exec.Cmd {
	full := append([]string{"compose", "-f", e.composePath, "-p", e.projectName}, args...)
	cmd := exec.Command("docker", full...)
	cmd.Dir = filepath.Dir(e.composePath)
	return cmd
}

func (e *DockerTestEnv) start() {
	e.t.Helper()

	cmd := e.compose(append([]string{"up", "-d"}, e.services...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	e.t.Logf("Starting Docker services: %v", e.services)
	if err := cmd.Run(); err != nil {
		e.t.Fatalf("Failed to start Docker services: %v", err)
	}
	e.started = true
}

// Stop stops and removes Docker Compose services
func (e *DockerTestEnv) Stop() {
	if !e.started {
		return
	}

	cmd := e.compose("down", "-v")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		e.t.Logf("Warning: Failed to stop Docker services: %v", err)
	}
	e.started = false
}

// WaitForHealthy waits for all services to be healthy
func (e *DockerTestEnv) WaitForHealthy(timeout time.Duration) error {
	e.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for services to be healthy")
		case <-ticker.C:
			if e.checkHealth() {
				return nil
			}
		}
	}
}

func (e *DockerTestEnv) checkHealth() bool {
	for _, service := range e.services {
		containerName := fmt.Sprintf("%s-%s-1", e.projectName, service)

		output, err := exec.Command("docker", "inspect", "--format", "{{.State.Health.Status}}", containerName).Output()
		if err != nil {
			// No health check defined, settle for running.
			output, err = exec.Command("docker", "inspect", "--format", "{{.State.Status}}", containerName).Output()
			if err != nil || strings.TrimSpace(string(output)) != "running" {
				return false
			}
			continue
		}

		status := strings.TrimSpace(string(output))
		if status != "healthy" && status != "" {
			return false
		}
	}
	return true
}

func (e *DockerTestEnv) discoverPorts() error {
	e.ports = make(map[string]map[int]int)

	for _, service := range e.services {
		ports, ok := servicePorts[service]
		if !ok {
			continue
		}
		e.ports[service] = make(map[int]int)

		for _, containerPort := range ports {
			output, err := e.compose("port", service, fmt.Sprintf("%d", containerPort)).Output()
			if err != nil {
				return fmt.Errorf("failed to get port for %s:%d: %w", service, containerPort, err)
			}

			// "0.0.0.0:32768" -> 32768
			portStr := strings.TrimSpace(string(output))
			idx := strings.LastIndex(portStr, ":")
			if idx < 0 {
				return fmt.Errorf("unexpected port output format: %s", portStr)
			}
			hostPort := 0
			if _, err := fmt.Sscanf(portStr[idx+1:], "%d", &hostPort); err != nil {
				return fmt.Errorf("failed to parse host port from %s: %w", portStr, err)
			}
			e.ports[service][containerPort] = hostPort
		}
	}
	return nil
}

// GetPort returns the host port for a service's container port
func (e *DockerTestEnv) GetPort(service string, containerPort int) int {
	if ports, ok := e.ports[service]; ok {
		if hostPort, ok := ports[containerPort]; ok {
			return hostPort
		}
	}
	return containerPort
}

// VaultAddress returns the Vault address with dynamic port
func (e *DockerTestEnv) VaultAddress() string {
	return fmt.Sprintf("http://127.0.0.1:%d", e.GetPort("vault", 8200))
}

// LocalStackEndpoint returns the LocalStack endpoint with dynamic port
func (e *DockerTestEnv) LocalStackEndpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d", e.GetPort("localstack", 4566))
}

// MailhogSMTPHost returns host and port of MailHog's SMTP listener
func (e *DockerTestEnv) MailhogSMTPHost() (string, int) {
	return "127.0.0.1", e.GetPort("mailhog", 1025)
}

// MailhogAPIAddr returns the MailHog HTTP API address with dynamic port
func (e *DockerTestEnv) MailhogAPIAddr() string {
	return fmt.Sprintf("http://127.0.0.1:%d", e.GetPort("mailhog", 8025))
}

// VaultConfig returns backend settings pointing at the vault container.
// The token is exported through VAULT_TOKEN for the duration of the test.
func (e *DockerTestEnv) VaultConfig() homelabcfg.HashiCorpVaultConfig {
	e.t.Setenv("VAULT_TOKEN", VaultDevToken)
	return homelabcfg.HashiCorpVaultConfig{
		Address: e.VaultAddress(),
		Mount:   homelabcfg.DefaultVaultMount,
	}
}

// AWSConfig returns backend settings pointing at the LocalStack container.
func (e *DockerTestEnv) AWSConfig() homelabcfg.AWSConfig {
	return homelabcfg.AWSConfig{
		Region:          homelabcfg.DefaultAWSRegion,
		Endpoint:        e.LocalStackEndpoint(),
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}
}

// VaultClient returns a root-token client for seeding and inspecting vault.
func (e *DockerTestEnv) VaultClient() *vaultapi.Client {
	e.t.Helper()

	cfg := vaultapi.DefaultConfig()
	cfg.Address = e.VaultAddress()
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		e.t.Fatalf("Failed to create vault client: %v", err)
	}
	client.SetToken(VaultDevToken)
	return client
}

// SecretsManagerClient returns a client for the LocalStack container.
func (e *DockerTestEnv) SecretsManagerClient() *secretsmanager.Client {
	e.t.Helper()

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(homelabcfg.DefaultAWSRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		e.t.Fatalf("Failed to load AWS config: %v", err)
	}
	endpoint := e.LocalStackEndpoint()
	return secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

// MailhogMessage is the subset of MailHog's message JSON the tests read.
type MailhogMessage struct {
	Content struct {
		Headers map[string][]string `json:"Headers"`
		Body    string              `json:"Body"`
	} `json:"Content"`
	Raw struct {
		From string   `json:"From"`
		To   []string `json:"To"`
	} `json:"Raw"`
}

// MailhogMessages returns all messages MailHog has received.
func (e *DockerTestEnv) MailhogMessages() []MailhogMessage {
	e.t.Helper()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(e.MailhogAPIAddr() + "/api/v2/messages")
	if err != nil {
		e.t.Fatalf("Failed to query MailHog: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		Items []MailhogMessage `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		e.t.Fatalf("Failed to decode MailHog response: %v", err)
	}
	return result.Items
}

func findDockerComposePath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := wd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			path := filepath.Join(dir, "tests", "integration", "docker-compose.yml")
			if _, err := os.Stat(path); err == nil {
				return path
			}
			return ""
		}
		if filepath.Dir(dir) == dir {
			return ""
		}
	}
}
