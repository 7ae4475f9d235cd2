// Package metrics records per-stage outcomes of homelab commands and
// optionally pushes them to a Prometheus Pushgateway when a run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder tracks stage outcomes for a single command run. Each Recorder
// owns its registry so runs and tests do not share state.
type Recorder struct {
	command  string
	registry *prometheus.Registry

	stages    *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewRecorder creates a recorder labelling every sample with command.
func NewRecorder(command string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		command:  command,
		registry: reg,
		stages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "homelab_stage_total",
			Help: "Pipeline stages executed, by outcome",
		}, []string{"command", "stage", "result"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "homelab_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"command", "stage"}),
	}
}

// Stage runs fn and records its duration and outcome under stage.
func (r *Recorder) Stage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.Observe(stage, time.Since(start), err)
	return err
}

// Observe records one completed stage.
func (r *Recorder) Observe(stage string, elapsed time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.stages.WithLabelValues(r.command, stage, result).Inc()
	r.durations.WithLabelValues(r.command, stage).Observe(elapsed.Seconds())
}

// StageCount returns the counter for stage and result.
func (r *Recorder) StageCount(stage, result string) prometheus.Counter {
	return r.stages.WithLabelValues(r.command, stage, result)
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Push sends the recorded samples to a Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	err := push.New(url, job).
		Gatherer(r.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
