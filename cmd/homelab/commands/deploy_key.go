package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/homelab/internal/config"
	"github.com/systmms/homelab/internal/deploykey"
	dserrors "github.com/systmms/homelab/internal/errors"
	"github.com/systmms/homelab/internal/metrics"
	"github.com/systmms/homelab/pkg/provider"
)

func NewDeployKeyCommand(cfg *config.Config, rt *Runtime) *cobra.Command {
	var (
		keyFile     string
		generateKey bool
		vaultName   string
		backend     string
	)

	cmd := &cobra.Command{
		Use:   "deploy-key <usecase> <git_url>",
		Short: "Create a Flux deploy key and store it in a vault",
		Long: `Generate the SSH identity Flux uses to pull a git repository and store it
as a vault item named deploy_key_<usecase>.

The key is either read from --key-file or generated by flux (ECDSA P-521).
Nothing is written when the item already exists.`,
		Example: `  homelab deploy-key homelab_data ssh://git@github.com/user/repo.git --key-file ./key.pem
  homelab deploy-key homelab_data git@github.com:user/repo.git --generate-key
  homelab deploy-key media ssh://git@github.com/user/media --generate-key --backend hashicorp-vault`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			dk := cfg.Def().DeployKey

			if cmd.Flags().Changed("backend") {
				if err := config.ValidateBackend(backend); err != nil {
					return err
				}
				dk.Backend = backend
			}
			if !cmd.Flags().Changed("vault-name") {
				vaultName = dk.VaultName
			}

			ctx := cmd.Context()
			rec := metrics.NewRecorder("deploy-key")
			defer pushMetrics(ctx, cfg, rec)

			var store provider.Provider
			pipeline := deploykey.NewPipeline(deploykey.Config{
				Generator: deploykey.NewFluxCLI(dk.Flux.Binary, dk.Flux.SecretName, rt.Executor),
				NewStore: func(ctx context.Context) (provider.Provider, error) {
					var err error
					store, err = rt.Registry.CreateProvider(ctx, dk, rt.Executor)
					if err != nil {
						return nil, fmt.Errorf("failed to initialize %s backend: %w", dk.Backend, err)
					}
					cfg.Logger.Debug("Using %s backend", store.Name())
					return store, nil
				},
				Checker:  deploykey.NewCommandChecker(rt.LookPath),
				Commands: []string{dk.Flux.Binary},
				Logger:   cfg.Logger,
				Metrics:  rec,
			})

			result, err := pipeline.Run(ctx, deploykey.Request{
				Usecase:     args[0],
				GitURL:      args[1],
				KeyFile:     keyFile,
				GenerateKey: generateKey,
				Vault:       vaultName,
			})
			if err != nil {
				return deployKeyError(dk.Backend, err)
			}

			out := rt.Out
			_, _ = fmt.Fprintf(out, "Successfully created %s item: %s in vault: %s\n", store.Name(), result.Item.Name, result.Item.Vault)
			_, _ = fmt.Fprintf(out, "Repository: %s\n", result.GitURL)
			if result.Fingerprint != "" {
				_, _ = fmt.Fprintf(out, "Fingerprint: %s\n", result.Fingerprint)
			}
			_, _ = fmt.Fprintf(out, "\nAdd this public key as a read-only deploy key on the repository:\n%s\n", strings.TrimSpace(result.PublicKey))
			return nil
		},
	}

	cmd.Flags().StringVar(&keyFile, "key-file", "", "Path to an existing private key file")
	cmd.Flags().BoolVar(&generateKey, "generate-key", false, "Generate a new ECDSA P-521 key using flux")
	cmd.Flags().StringVar(&vaultName, "vault-name", config.DefaultVaultName, "Vault to store the item in")
	cmd.Flags().StringVar(&backend, "backend", "", "Vault backend: "+strings.Join(config.Backends, ", ")+" (default from config)")
	cmd.MarkFlagsMutuallyExclusive("key-file", "generate-key")
	cmd.MarkFlagsOneRequired("key-file", "generate-key")

	return cmd
}

// deployKeyError attaches an install or remediation hint to a pipeline
// failure. The pipeline's error types stay reachable through errors.As.
func deployKeyError(backend string, err error) error {
	var notFound *deploykey.CommandNotFoundError
	if errors.As(err, &notFound) {
		return dserrors.UserError{
			Message:    err.Error(),
			Suggestion: dserrors.CommandSuggestion(notFound.Name),
			Err:        err,
		}
	}

	var fluxErr *deploykey.FluxSecretError
	if errors.As(err, &fluxErr) {
		return dserrors.WithSuggestion("flux", err)
	}

	var validationErr *deploykey.ValidationError
	var exists *deploykey.ItemExistsError
	if errors.As(err, &validationErr) || errors.As(err, &exists) {
		return err
	}
	return dserrors.WithSuggestion(backend, err)
}
