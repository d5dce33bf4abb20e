// Package logger initializes the process-wide slog logger.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// L is the shared logger. Init replaces it; packages should prefer
// constructor-injected loggers and fall back to L only at the edges.
var L = slog.Default()

// Init configures the global logger with the given level and format.
// Format is "text" or "json"; unknown values fall back to text.
func Init(level, format string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	L = slog.New(handler)
	slog.SetDefault(L)
}
