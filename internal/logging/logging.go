package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a deliberately small, framework-agnostic logging interface.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, fields ...Field)

	// Info logs an informational message.
	Info(msg string, fields ...Field)

	// Warn logs a warning.
	Warn(msg string, fields ...Field)

	// Error logs an error.
	Error(msg string, fields ...Field)

	// With returns a child logger with persistent fields.
	With(fields ...Field) Logger
}

// Field is a simple key/value pair for structured logging fields.
type Field struct {
	Key   string
	Value any
}

// StdoutLogger is a structured logger that prints JSON lines.
// It implements Logger on top of log/slog.
type StdoutLogger struct {
	component string
	slog      *slog.Logger
}

// NewStdoutLogger creates a StdoutLogger writing to stdout at info level.
// component is included in every line when non-empty.
func NewStdoutLogger(component string) *StdoutLogger {
	return NewLogger(os.Stdout, component, "info")
}

// NewLogger creates a StdoutLogger writing JSON lines to w at the given level
// (debug|info|warn|error, unknown values fall back to info).
func NewLogger(w io.Writer, component, level string) *StdoutLogger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &StdoutLogger{component: component, slog: slog.New(h)}
}

// ParseLevel converts a string (debug|info|warn|error) to a slog.Level.
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

func (s *StdoutLogger) log(level slog.Level, msg string, fields ...Field) {
	if !s.slog.Enabled(context.Background(), level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields)+1)
	if s.component != "" {
		attrs = append(attrs, slog.String("component", s.component))
	}
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	s.slog.LogAttrs(context.Background(), level, msg, attrs...)
}

func (s *StdoutLogger) Debug(msg string, fields ...Field) {
	s.log(slog.LevelDebug, msg, fields...)
}

func (s *StdoutLogger) Info(msg string, fields ...Field) {
	s.log(slog.LevelInfo, msg, fields...)
}

func (s *StdoutLogger) Warn(msg string, fields ...Field) {
	s.log(slog.LevelWarn, msg, fields...)
}

func (s *StdoutLogger) Error(msg string, fields ...Field) {
	s.log(slog.LevelError, msg, fields...)
}

// With returns a child logger. A "component" field replaces the component name;
// every other field is attached to all lines of the child.
func (s *StdoutLogger) With(fields ...Field) Logger {
	child := &StdoutLogger{component: s.component, slog: s.slog}
	for _, f := range fields {
		if f.Key == "component" {
			if str, ok := f.Value.(string); ok {
				child.component = str
				continue
			}
		}
		child.slog = child.slog.With(slog.Any(f.Key, f.Value))
	}
	return child
}

// Component returns the component name of the logger.
func (s *StdoutLogger) Component() string {
	return s.component
}
