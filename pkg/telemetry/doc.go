// Package telemetry wires observability for a bootkit run: structured logging
// (zerolog), tracing (OpenTelemetry) and metrics (Prometheus).
//
// # Usage
//
// Initialize telemetry once per invocation:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Logging.Level = "debug"
//	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/bootkit.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// NewTelemetry installs the global zerolog logger, so packages log through
// github.com/rs/zerolog/log. It also installs the global tracer provider; the
// probe and the executor open spans with otel.Tracer and need no reference
// to this package.
//
// # Metrics
//
// Metrics implements engine.ResultRecorder and is passed to the executor
// with engine.WithRecorder. Because a run is short-lived, metrics are not
// served over HTTP. Shutdown writes them once to a textfile that a node
// exporter textfile collector can pick up.
//
//	bootkit_actions_total{category,kind,outcome}
//	bootkit_action_duration_seconds{category}
//	bootkit_runs_total{status}
//	bootkit_run_duration_seconds
//	bootkit_last_run_timestamp_seconds
//	bootkit_probe_unavailable_total{manager}
//	bootkit_policy_denials_total{policy}
//
// # Tracing
//
// Exporters: "otlp" (gRPC, to Endpoint), "stdout" (JSON to a file or stderr)
// and "none".
package telemetry
