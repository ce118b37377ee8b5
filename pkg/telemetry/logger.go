package telemetry

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger creates a logger with the given configuration. The returned
// closer releases a log file, if one was opened.
func NewLogger(cfg LoggingConfig) (zerolog.Logger, io.Closer, error) {
	var writer io.Writer
	var closer io.Closer = io.NopCloser(nil)

	switch cfg.Output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		// If it's not stdout/stderr, assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		writer, closer = file, file
	}

	if cfg.Format != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.NoColor,
		}
	}

	zlog := zerolog.New(writer).
		Level(ParseLogLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	return zlog, closer, nil
}

// SetupGlobal installs a logger built from cfg as the global zerolog logger.
func SetupGlobal(cfg LoggingConfig) (io.Closer, error) {
	zlog, closer, err := NewLogger(cfg)
	if err != nil {
		return closer, err
	}
	log.Logger = zlog
	return closer, nil
}

// ParseLogLevel converts a string log level to zerolog.Level.
func ParseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
