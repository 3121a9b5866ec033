// Package logging provides a thin, structured wrapper around log/slog.
//
// It exists so that call sites log through a small typed interface
// (Logger) rather than the global slog default logger, and so that
// logging can be disabled entirely via Config.Enabled without every
// call site needing an if-check.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Config controls how a Logger is constructed.
type Config struct {
	// Enabled disables all output when false; every method becomes a
	// no-op. Used to honor Config.LogEnabled from the proxy's own
	// configuration.
	Enabled bool

	// Service names the component emitting logs, attached to every entry.
	Service string

	// JSON selects JSON output; otherwise logs are human-readable text.
	JSON bool
}

// Logger wraps an *slog.Logger with an enabled/disabled switch.
type Logger struct {
	slog    *slog.Logger
	enabled bool
}

// New builds a Logger writing to stderr per cfg.
func New(cfg Config) *Logger {
	if !cfg.Enabled {
		return &Logger{enabled: false}
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.JSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	l := slog.New(handler)
	if cfg.Service != "" {
		l = l.With("service", cfg.Service)
	}
	return &Logger{slog: l, enabled: true}
}

// Default returns a Logger with sane CLI defaults: enabled, text format.
func Default() *Logger {
	return New(Config{Enabled: true, Service: "proxy"})
}

// With returns a child Logger carrying the given key/value attributes.
func (l *Logger) With(args ...any) *Logger {
	if l == nil || !l.enabled {
		return l
	}
	return &Logger{slog: l.slog.With(args...), enabled: true}
}

func (l *Logger) Debug(msg string, args ...any) {
	if l != nil && l.enabled {
		l.slog.Debug(msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l != nil && l.enabled {
		l.slog.Info(msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	if l != nil && l.enabled {
		l.slog.Warn(msg, args...)
	}
}

func (l *Logger) Error(msg string, args ...any) {
	if l != nil && l.enabled {
		l.slog.Error(msg, args...)
	}
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	if l != nil && l.enabled {
		l.slog.InfoContext(ctx, msg, args...)
	}
}
