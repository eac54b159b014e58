// Package logging configures the process-wide slog logger shared by all services.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"indoormap/internal/common/config"
)

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// Init installs the logger described by cfg as the default slog logger.
// When cfg.File is set, records are also written to a rotating JSON file.
func Init(service string, cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		console = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		console = slog.NewTextHandler(os.Stderr, opts)
	}

	handler := console
	if strings.TrimSpace(cfg.File) != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		handler = fanout{console, slog.NewJSONHandler(rotating, opts)}
	}

	logger := slog.New(handler).With(slog.String("service", service))

	mu.Lock()
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
	return logger
}

// L returns the configured logger, or slog's default before Init.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return slog.Default()
	}
	return current
}

// WithComponent tags the logger with a component name.
func WithComponent(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// Discard is a logger for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
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
