package forestlog

import (
	"io"
	"log/slog"
	"strings"
)

// Logger is the structured logging surface used by the store components.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewLogger returns a text slog logger writing to w at the named level
// ("debug", "info", "warn", "error"; anything else means info).
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})).With("component", "forestlog")
}

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// discardLogger is the default for components built without a logger.
var discardLogger Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func orDiscard(l Logger) Logger {
	if l == nil {
		return discardLogger
	}
	return l
}
