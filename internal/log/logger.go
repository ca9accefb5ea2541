package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger and tags every record with a component name.
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "text",
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

// ParseLevel maps a config string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.Format == "json" {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}

	return &Logger{
		Logger:    slog.New(handler),
		component: config.Component,
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
	}
}

// WithComponent returns a new logger with a specific component name
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger,
		component: component,
	}
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.Logger.InfoContext(ctx, msg, l.tag(args)...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.Logger.WarnContext(ctx, msg, l.tag(args)...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.Logger.ErrorContext(ctx, msg, l.tag(args)...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.Logger.DebugContext(ctx, msg, l.tag(args)...)
}

// Log logs at an arbitrary level with the component attached.
func (l *Logger) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	l.Logger.Log(ctx, level, msg, l.tag(args)...)
}

func (l *Logger) tag(args []any) []any {
	return append([]any{FieldComponent, l.component}, args...)
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger.With(FieldComponent, logger.component))
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}
