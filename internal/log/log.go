// Package log owns the process-wide slog logger. The level can change at
// runtime so config reloads take effect without rebuilding handlers.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	level  = new(slog.LevelVar)
	mu     sync.Mutex
)

// Options configures the global logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Format is "text" or "json". Empty picks JSON when GO_ENV=production.
	Format string
	// Output defaults to stderr so stdout stays free for the terminal preview.
	Output io.Writer
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Setup (re)builds the global logger and installs it as the slog default.
func Setup(o Options) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	level.Set(ParseLevel(o.Level))
	out := o.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	format := o.Format
	if format == "" && os.Getenv("GO_ENV") == "production" {
		format = "json"
	}
	if format == "json" {
		logger = slog.New(slog.NewJSONHandler(out, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(out, opts))
	}

	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the level of the running logger.
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

// Level returns the active level.
func Level() slog.Level {
	return level.Level()
}

// L returns the global logger instance.
func L() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return Setup(Options{Level: "info"})
	}
	return l
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
