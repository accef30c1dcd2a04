package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/dunamismax/pixelconv/internal/config"
	"github.com/rs/zerolog"
)

// NewLogger builds the component logger. Unknown levels fall back to info.
func NewLogger(cfg config.LogConfig, component string) zerolog.Logger {
	return newLogger(os.Stderr, cfg, component)
}

func newLogger(out io.Writer, cfg config.LogConfig, component string) zerolog.Logger {
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func parseLevel(value string) zerolog.Level {
	switch value {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
