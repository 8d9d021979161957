// Package logging konfiguruje globalny logger slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel zamienia nazwę poziomu na slog.Level. Nieznane nazwy dają info.
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

// InitLogger ustawia globalny logger JSON na stdout z podanym poziomem
func InitLogger(level string) *slog.Logger {
	return InitLoggerTo(os.Stdout, level)
}

// InitLoggerTo działa jak InitLogger, ale pisze do w
func InitLoggerTo(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	})
	logger := slog.New(handler).With("service", "digilib")
	slog.SetDefault(logger)
	return logger
}
