package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return slog.New(consoleHandler(os.Stdout, levelFromString(level)))
}

// Setup returns the console logger and, when file is set, fans every record
// out to a JSON log file as well. The cleanup closes the file.
func Setup(level, file string) (*slog.Logger, func() error, error) {
	lvl := levelFromString(level)
	console := consoleHandler(os.Stdout, lvl)
	if file == "" {
		return slog.New(console), func() error { return nil }, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(console), func() error { return nil }, fmt.Errorf("open log file %s: %w", file, err)
	}
	return WithWriters(os.Stdout, f, level), f.Close, nil
}

// WithWriters builds the fanout logger over arbitrary writers.
func WithWriters(console, file io.Writer, level string) *slog.Logger {
	lvl := levelFromString(level)
	return slog.New(slogmulti.Fanout(
		consoleHandler(console, lvl),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: lvl}),
	))
}

func consoleHandler(w io.Writer, lvl slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
