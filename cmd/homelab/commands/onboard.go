package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/homelab/internal/config"
	"github.com/systmms/homelab/internal/metrics"
	"github.com/systmms/homelab/internal/onboarding"
)

func NewOnboardUserCommand(cfg *config.Config, rt *Runtime) *cobra.Command {
	var req onboarding.Request

	cmd := &cobra.Command{
		Use:   "onboard-user",
		Short: "Create an lldap user and email them setup instructions",
		Long: `Create a user in lldap and send a welcome email pointing at Authelia's
password reset page.

Settings come from the environment or the nearest .env file:
  LLDAP_URL, LLDAP_ADMIN_USER, LLDAP_ADMIN_PASSWORD,
  SMTP_HOST, SMTP_PORT (default 25), SMTP_USERNAME, SMTP_PASSWORD,
  EMAIL_FROM, AUTHELIA_URL

When LLDAP_ADMIN_PASSWORD is unset it is read from the OS keyring
(service "` + config.KeyringService + `", account = LLDAP_ADMIN_USER).`,
		Example: `  homelab onboard-user --username jdoe --email jdoe@example.com --first-name Jane --last-name Doe`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			// Reject bad input before touching the environment.
			if err := req.Validate(); err != nil {
				return err
			}

			settings, err := config.LoadOnboarding()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rec := metrics.NewRecorder("onboard-user")
			defer pushMetrics(ctx, cfg, rec)

			if _, err := rt.NewOnboarder(settings, cfg.Logger, rec).Onboard(ctx, req); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(rt.Out, "\nDone! The user should receive an email with instructions.")
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "Username for the new user")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address for the new user")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "User's first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "User's last name")
	cmd.Flags().StringVar(&req.DisplayName, "display-name", "", "Display name (default \"<first> <last>\")")
	for _, name := range []string{"username", "email", "first-name", "last-name"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
