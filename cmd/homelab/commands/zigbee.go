package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/homelab/internal/config"
	dserrors "github.com/systmms/homelab/internal/errors"
	"github.com/systmms/homelab/internal/metrics"
	"github.com/systmms/homelab/internal/zigbee"
)

func NewZigbeeDedupCommand(cfg *config.Config, rt *Runtime) *cobra.Command {
	var opts zigbee.Options

	cmd := &cobra.Command{
		Use:   "zigbee-dedup",
		Short: "Remove devices from devices-auto.yaml that devices.yaml already defines",
		Long: `zigbee2mqtt records newly paired devices in devices-auto.yaml. Devices that
are also defined in devices.yaml are removed from the auto file so the
static definition wins. Comments and ordering of the remaining devices are
kept. A missing file counts as empty.`,
		Example: `  homelab zigbee-dedup --devices-auto-path /data/devices-auto.yaml --devices-static-path /data/devices.yaml
  homelab zigbee-dedup --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			defaults := cfg.Def().Zigbee
			if opts.AutoPath == "" {
				opts.AutoPath = defaults.DevicesAutoPath
			}
			if opts.StaticPath == "" {
				opts.StaticPath = defaults.DevicesStaticPath
			}
			if opts.AutoPath == "" || opts.StaticPath == "" {
				return dserrors.UserError{
					Message:    "Both device file paths are required",
					Suggestion: "Pass --devices-auto-path and --devices-static-path, or set zigbee.devicesAutoPath and zigbee.devicesStaticPath in " + cfg.Path,
				}
			}

			rec := metrics.NewRecorder("zigbee-dedup")
			defer pushMetrics(cmd.Context(), cfg, rec)

			_, err := zigbee.New(cfg.Logger, rec).Run(opts)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.AutoPath, "devices-auto-path", "", "Path to the devices-auto.yaml file")
	cmd.Flags().StringVar(&opts.StaticPath, "devices-static-path", "", "Path to the devices.yaml file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report duplicates without modifying the file")

	return cmd
}
