// Package logging provides structured logging for the location subsystem.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// contextKey is used for storing logger in context.
type contextKey struct{}

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
	level slog.Level
}

// NewLogger creates a new structured logger writing JSON to stdout.
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(level, os.Stdout)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) *Logger {
	l := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     l,
		AddSource: l == slog.LevelDebug,
	}

	handler := slog.NewJSONHandler(w, opts)
	logger := slog.New(handler)

	return &Logger{
		Logger: logger,
		level:  l,
	}
}

// WithContext returns a new context with the logger.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return NewLogger("info")
}

// With returns a new logger with additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
	}
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithDevice returns a logger tagged with a device display name.
func (l *Logger) WithDevice(name string) *Logger {
	return l.With("device", name)
}

// WithProvider returns a logger tagged with a location provider name.
func (l *Logger) WithProvider(name string) *Logger {
	return l.With("provider", name)
}

// WithRequestID returns a logger tagged with the given request ID, or a
// freshly generated one when empty.
func (l *Logger) WithRequestID(requestID string) *Logger {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return l.With("request_id", requestID)
}

// WithError returns a logger with error.
func (l *Logger) WithError(err error) *Logger {
	return l.With("error", err.Error())
}

// Helper to parse log level string.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Standard logging functions.

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.Logger.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.Logger.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.Logger.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.Logger.Error(msg, args...)
}
