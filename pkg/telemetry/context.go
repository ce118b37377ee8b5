package telemetry

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
)

// Telemetry bundles the logger, tracer and metrics of one invocation.
type Telemetry struct {
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config

	logCloser io.Closer
}

// NewTelemetry validates cfg, installs the global logger and tracer, and
// creates the metrics registry.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	closer, err := SetupGlobal(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &Telemetry{
		Tracer:    tracer,
		Metrics:   NewMetrics(cfg.Metrics),
		Config:    cfg,
		logCloser: closer,
	}, nil
}

// Shutdown writes the metrics textfile, flushes spans and closes the log output.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if err := t.Metrics.WriteTextfile(); err != nil {
		errs = append(errs, err)
	}
	if err := t.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if t.logCloser != nil {
		if err := t.logCloser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		log.Debug().Errs("errors", errs).Msg("Telemetry shutdown incomplete")
	}
	return errors.Join(errs...)
}
