package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/airsentinel/airsentinel-core/internal/infrastructure/config"
)

// Logger is a thin wrapper over slog.Logger. Every line carries the
// service name and version so aggregated logs from several AirSentinel
// instances stay distinguishable. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the config section. Format "text" is for
// terminals; anything else means JSON. Unknown levels fall back to info
// rather than failing startup over a typo.
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "airsentinel"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying extra default attributes, the
// usual way packages tag their lines:
//
//	engineLog := logger.With("component", "reconcile")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used before config is loaded: JSON to
// stdout at info level, version "dev".
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
