// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package logging provides structured logging for batsched.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"
)

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// slogLogger wraps slog.Logger to implement Logger.
type slogLogger struct {
	logger *slog.Logger
}

// NewLogger creates a new logger with the specified configuration.
func NewLogger(config *Config) Logger {
	if config == nil {
		config = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level: config.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	logger := slog.New(handler).With(
		"service", "batsched",
		"version", config.Version,
	)

	return &slogLogger{logger: logger}
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, sanitizeFields(args)...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, sanitizeFields(args)...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, sanitizeFields(args)...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, sanitizeFields(args)...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	attrs := make([]any, 0, 2)
	if runID := ctx.Value(runIDKey{}); runID != nil {
		attrs = append(attrs, "run_id", runID)
	}
	if len(attrs) > 0 {
		return l.With(attrs...)
	}
	return l
}

// runIDKey is the context key under which Session stores its run id, so
// any logger derived WithContext picks it up automatically.
type runIDKey struct{}

// WithRunID returns a context carrying runID for later retrieval by
// Logger.WithContext.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level.
	Level slog.Level

	// Format is the output format (text or json).
	Format Format

	// Output is where logs are written (default: os.Stdout).
	Output *os.File

	// Version is the batsched build version to include in logs.
	Version string
}

// Format represents the log output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// DefaultConfig returns a default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:   slog.LevelInfo,
		Format:  FormatText,
		Output:  os.Stdout,
		Version: "unknown",
	}
}

// sanitizeLogValue strips control characters from string log values to
// prevent log injection via job profile tags or workload file paths.
func sanitizeLogValue(value any) any {
	str, ok := value.(string)
	if !ok {
		return value
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r) && !unicode.IsSpace(r):
			return -1
		default:
			return r
		}
	}, str)
}

// sanitizeFields sanitizes every other element of a slog key/value field
// list (keys are always literals controlled by batsched itself).
func sanitizeFields(fields []any) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		if i%2 == 1 {
			out[i] = sanitizeLogValue(f)
		} else {
			out[i] = f
		}
	}
	return out
}

// LogDuration logs the duration of an operation.
func LogDuration(logger Logger, start time.Time, operation string) {
	logger.Info("operation completed",
		"operation", operation,
		"duration", time.Since(start).String(),
	)
}

// LogError logs a fatal batsched error with its code/category if it
// carries one (see pkg/errors).
func LogError(logger Logger, err error, operation string) {
	if err == nil {
		return
	}
	logger.Error("operation failed",
		"operation", operation,
		"error", err.Error(),
		"error_type", fmt.Sprintf("%T", err),
	)
}

// NoOpLogger discards all log messages; used by library callers that
// don't want batsched's own logging.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...any)          {}
func (NoOpLogger) Info(msg string, args ...any)           {}
func (NoOpLogger) Warn(msg string, args ...any)           {}
func (NoOpLogger) Error(msg string, args ...any)          {}
func (NoOpLogger) With(args ...any) Logger                { return NoOpLogger{} }
func (NoOpLogger) WithContext(ctx context.Context) Logger { return NoOpLogger{} }

// DefaultLogger is a package-level logger for convenience.
var DefaultLogger = NewLogger(DefaultConfig())

// SetDefaultLogger sets the package-level default logger.
func SetDefaultLogger(logger Logger) {
	DefaultLogger = logger
}
