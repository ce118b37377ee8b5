package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bootkit/bootkit/pkg/engine"
)

// Metrics provides Prometheus metrics for a run. A provisioner is not a
// long-lived service, so metrics are exported once per run as a textfile
// rather than served over HTTP.
type Metrics struct {
	config MetricsConfig

	actionsTotal     *prometheus.CounterVec
	actionDuration   *prometheus.HistogramVec
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastRunTimestamp prometheus.Gauge
	probeUnavailable *prometheus.CounterVec
	policyDenials    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// All methods are safe on a nil *Metrics.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Recorded actions by category, kind and outcome",
			},
			[]string{"category", "kind", "outcome"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of dispatched actions in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"category"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Completed runs by status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of whole runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		lastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run completed",
			},
		),
		probeUnavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_unavailable_total",
				Help:      "Probes whose host state could not be determined",
			},
			[]string{"manager"},
		),
		policyDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_denials_total",
				Help:      "Installs denied by policy",
			},
			[]string{"policy"},
		),
	}

	registry.MustRegister(
		m.actionsTotal,
		m.actionDuration,
		m.runsTotal,
		m.runDuration,
		m.lastRunTimestamp,
		m.probeUnavailable,
		m.policyDenials,
	)

	return m
}

// RecordResult counts one execution result. It satisfies engine.ResultRecorder.
func (m *Metrics) RecordResult(result engine.ExecutionResult) {
	if m == nil || m.actionsTotal == nil {
		return
	}
	a := result.Action
	m.actionsTotal.WithLabelValues(string(a.Category), string(a.Kind), string(result.Outcome)).Inc()
	if a.Kind == engine.ActionInstall {
		m.actionDuration.WithLabelValues(string(a.Category)).Observe(result.Duration.Seconds())
	}
}

// RecordRun records a completed run with its status and duration.
func (m *Metrics) RecordRun(status engine.RunStatus, duration time.Duration) {
	if m == nil || m.runsTotal == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunTimestamp.SetToCurrentTime()
}

// RecordProbeUnavailable counts a package manager whose state could not be read.
func (m *Metrics) RecordProbeUnavailable(manager string) {
	if m == nil || m.probeUnavailable == nil {
		return
	}
	m.probeUnavailable.WithLabelValues(manager).Inc()
}

// RecordPolicyDenial counts an install denied by a policy.
func (m *Metrics) RecordPolicyDenial(policy string) {
	if m == nil || m.policyDenials == nil {
		return
	}
	m.policyDenials.WithLabelValues(policy).Inc()
}

// Registry returns the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes all metrics to the configured textfile path.
func (m *Metrics) WriteTextfile() error {
	if m == nil || m.registry == nil || m.config.TextfilePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.config.TextfilePath), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(m.config.TextfilePath, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
