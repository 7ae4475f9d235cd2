package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/systmms/homelab/cmd/homelab/commands"
	"github.com/systmms/homelab/internal/config"
	"github.com/systmms/homelab/internal/deploykey"
	"github.com/systmms/homelab/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], commands.DefaultRuntime())
	stop()

	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)

	var exists *deploykey.ItemExistsError
	if errors.As(err, &exists) {
		_, _ = fmt.Fprintln(w, exists.Suggestion())
	}
}

func run(ctx context.Context, args []string, rt *commands.Runtime) error {
	rootCmd := newRootCommand(rt)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(rt *commands.Runtime) *cobra.Command {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "homelab",
		Short: "Homelab operations - deploy keys, user onboarding and device cleanup",
		Long: `homelab bootstraps and maintains a Flux-managed home lab: it stores git
deploy keys in a secrets manager, onboards users into lldap and keeps
zigbee2mqtt device files tidy.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewDeployKeyCommand(cfg, rt),
		commands.NewOnboardUserCommand(cfg, rt),
		commands.NewZigbeeDedupCommand(cfg, rt),
		commands.NewDoctorCommand(cfg, rt),
	)

	return rootCmd
}
