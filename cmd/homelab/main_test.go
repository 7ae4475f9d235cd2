package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/homelab/cmd/homelab/commands"
	"github.com/systmms/homelab/internal/deploykey"
	"github.com/systmms/homelab/internal/providers"
	"github.com/systmms/homelab/tests/testutil"
)

func testRuntime(out *bytes.Buffer) *commands.Runtime {
	return &commands.Runtime{
		Executor: testutil.NewMockCommandExecutor(),
		LookPath: func(name string) (string, error) { return "/bin/" + name, nil },
		Registry: providers.NewRegistry(),
		Out:      out,
	}
}

func TestRun_ConfigFlag(t *testing.T) {
	path := testutil.NewTestConfig(t).WithBackend("aws-secretsmanager").WithVaultName("lab").Write()

	var out bytes.Buffer
	err := run(context.Background(), []string{"--config", path, "--no-color", "doctor"}, testRuntime(&out))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Backend: aws-secretsmanager")
	assert.Contains(t, out.String(), "Vault:   lab")
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"rotate"}, testRuntime(&out))
	testutil.AssertErrorContains(t, err, `unknown command "rotate"`)
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand(testRuntime(&bytes.Buffer{}))

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"deploy-key", "onboard-user", "zigbee-dedup", "doctor"} {
		assert.Contains(t, names, want)
	}
}

func TestPrintError(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		var buf bytes.Buffer
		printError(&buf, errors.New("flux command not found"))
		assert.Equal(t, "Error: flux command not found\n", buf.String())
	})

	t.Run("existing item adds guidance", func(t *testing.T) {
		var buf bytes.Buffer
		err := fmt.Errorf("deploy: %w", &deploykey.ItemExistsError{Backend: "1Password", Item: "deploy_key_media", Vault: "homelab-k8s"})
		printError(&buf, err)

		assert.Equal(t,
			"Error: deploy: 1Password item 'deploy_key_media' already exists in vault 'homelab-k8s'\n"+
				"Please delete the existing item or use a different usecase name\n",
			buf.String())
	})
}
