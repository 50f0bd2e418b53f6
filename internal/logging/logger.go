package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger appropriate for the environment.
// Production uses JSON format at info level, development uses
// human-readable text at debug level. A non-empty level string overrides
// the environment default ("debug", "info", "warn", "error").
func NewLogger(env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if env != "production" {
		opts.Level = slog.LevelDebug
	}
	if l, ok := parseLevel(level); ok {
		opts.Level = l
	}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
