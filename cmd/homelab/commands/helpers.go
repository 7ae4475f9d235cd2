package commands

import (
	"context"
	"io"
	"os"

	"github.com/systmms/homelab/internal/config"
	"github.com/systmms/homelab/internal/lldap"
	"github.com/systmms/homelab/internal/logging"
	"github.com/systmms/homelab/internal/metrics"
	"github.com/systmms/homelab/internal/onboarding"
	"github.com/systmms/homelab/internal/providers"
	pkgexec "github.com/systmms/homelab/pkg/exec"
)

// Onboarder creates a user account and sends the welcome email.
type Onboarder interface {
	Onboard(ctx context.Context, req onboarding.Request) (*lldap.User, error)
}

// Runtime holds the process-wide collaborators of every command.
type Runtime struct {
	Executor pkgexec.CommandExecutor
	LookPath pkgexec.LookPathFunc
	Registry *providers.Registry
	Out      io.Writer

	NewOnboarder func(cfg *config.OnboardingConfig, logger *logging.Logger, rec *metrics.Recorder) Onboarder
}

// DefaultRuntime returns the runtime used by the homelab binary.
func DefaultRuntime() *Runtime {
	return &Runtime{
		Executor: pkgexec.DefaultExecutor(),
		LookPath: pkgexec.LookPath,
		Registry: providers.NewRegistry(),
		Out:      os.Stdout,
		NewOnboarder: func(cfg *config.OnboardingConfig, logger *logging.Logger, rec *metrics.Recorder) Onboarder {
			return onboarding.NewServiceFromConfig(cfg, logger, rec)
		},
	}
}

// pushMetrics sends rec to the configured Pushgateway. Failures only warn.
func pushMetrics(ctx context.Context, cfg *config.Config, rec *metrics.Recorder) {
	def := cfg.Def()
	if def.Metrics.Pushgateway == "" {
		return
	}
	if err := rec.Push(context.WithoutCancel(ctx), def.Metrics.Pushgateway, def.Metrics.Job); err != nil {
		cfg.Logger.Warn("%v", err)
		return
	}
	cfg.Logger.Debug("Pushed metrics to %s", def.Metrics.Pushgateway)
}
