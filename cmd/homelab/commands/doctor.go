package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/homelab/internal/config"
	dserrors "github.com/systmms/homelab/internal/errors"
)

// ToolStatus is the availability of one external command.
type ToolStatus struct {
	Name     string
	Path     string
	Required bool
	Purpose  string
}

// Available reports whether the tool was found on PATH.
func (s ToolStatus) Available() bool { return s.Path != "" }

func NewDoctorCommand(cfg *config.Config, rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the tools each command needs are installed",
		Long: `Report which external tools are on PATH and which vault backend
deploy-key is configured to use.

Fails when a tool required by the configured backend is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			dk := cfg.Def().DeployKey

			if !rt.Registry.Has(dk.Backend) {
				return fmt.Errorf("unknown vault backend: %s", dk.Backend)
			}

			tools := checkTools(rt, dk)

			out := rt.Out
			_, _ = fmt.Fprintf(out, "Backend: %s\n", dk.Backend)
			_, _ = fmt.Fprintf(out, "Vault:   %s\n\n", dk.VaultName)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TOOL\tSTATUS\tUSED FOR\tPATH\n")
			_, _ = fmt.Fprintf(w, "----\t------\t--------\t----\n")

			var missing []error
			for _, tool := range tools {
				status := "✓ found"
				if !tool.Available() {
					if tool.Required {
						status = "✗ missing"
						missing = append(missing, dserrors.WrapCommandNotFound(tool.Name))
					} else {
						status = "- not installed"
					}
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tool.Name, status, tool.Purpose, tool.Path)
			}
			_ = w.Flush()

			if len(missing) > 0 {
				return errors.Join(missing...)
			}

			cfg.Logger.Info("All required tools are installed")
			return nil
		},
	}
}

// checkTools looks up flux, op and whatever the backend requires.
func checkTools(rt *Runtime, dk config.DeployKeyConfig) []ToolStatus {
	tools := []ToolStatus{
		{Name: dk.Flux.Binary, Required: true, Purpose: "deploy-key"},
		{Name: dk.OnePassword.Binary, Required: dk.Backend == "onepassword", Purpose: "onepassword backend"},
	}

	for i := range tools {
		if path, err := rt.LookPath(tools[i].Name); err == nil {
			tools[i].Path = path
		}
	}
	return tools
}
