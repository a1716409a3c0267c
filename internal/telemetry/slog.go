package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// SetupLogger installs the global slog default logger based on the format and
// level strings read from application configuration.
//
// format "json" selects JSONHandler (machine readable, for production); anything
// else selects TextHandler (for local development). level is one of "debug",
// "info", "warn", "error" (case-insensitive) and defaults to "info".
//
// The logger is installed as the slog default so handlers and repositories can
// call slog.Info/Warn/Error directly without carrying a *slog.Logger around.
func SetupLogger(format, level string) *slog.Logger {
	lvl := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug, // file:line only when debugging
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Info("logger initialised", "format", format, "level", lvl.String())
	return logger
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
