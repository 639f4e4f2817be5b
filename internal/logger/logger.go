// Package logger provides structured logging for the server.
// It wraps log/slog with JSON output, lifts tracing values out of the
// request context, and optionally ships records to Better Stack.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogbetterstack "github.com/samber/slog-betterstack"
)

// Logger is the application logger
type Logger struct {
	*slog.Logger
	level    *slog.LevelVar
	shutdown func(context.Context) error
}

// Options configures NewWithOptions.
type Options struct {
	Level  string
	Writer io.Writer
	// BetterStackToken enables remote log shipping when non-empty.
	BetterStackToken string
}

// New creates a logger writing JSON to stdout.
func New(level string) *Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithWriter creates a logger writing JSON to w.
func NewWithWriter(level string, w io.Writer) *Logger {
	return NewWithOptions(Options{Level: level, Writer: w})
}

// NewWithOptions builds the handler chain:
// ContextHandler -> MultiHandler(JSON, async Better Stack).
func NewWithOptions(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	lv := new(slog.LevelVar)
	lv.Set(parseLevel(opts.Level))

	handlers := []slog.Handler{
		slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv, ReplaceAttr: renameAttrs}),
	}

	shutdown := func(context.Context) error { return nil }
	if opts.BetterStackToken != "" {
		remote := NewAsyncHandler(slogbetterstack.Option{
			Level: lv,
			Token: opts.BetterStackToken,
		}.NewBetterstackHandler(), 0)
		handlers = append(handlers, remote)
		shutdown = remote.Shutdown
	}

	return &Logger{
		Logger:   slog.New(NewContextHandler(NewMultiHandler(handlers...))),
		level:    lv,
		shutdown: shutdown,
	}
}

func renameAttrs(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	case slog.LevelKey:
		level := strings.ToLower(a.Value.String())
		if level == "warn" {
			level = "warning"
		}
		a.Value = slog.StringValue(level)
	}
	return a
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		l.level.Set(parseLevel(level))
		return nil
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
}

// GetLevel returns the current minimum level.
func (l *Logger) GetLevel() slog.Level {
	return l.level.Level()
}

// Shutdown flushes pending remote log records.
func (l *Logger) Shutdown(ctx context.Context) error {
	return l.shutdown(ctx)
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.With(args...), level: l.level, shutdown: l.shutdown}
}

// WithModule creates a new entry with module field
func (l *Logger) WithModule(module string) *Logger {
	return l.with("module", module)
}

// WithError creates a new entry with error field
func (l *Logger) WithError(err error) *Logger {
	return l.with("error", err)
}

// WithField creates a new entry with a single field
func (l *Logger) WithField(key string, value any) *Logger {
	return l.with(key, value)
}

// WithFields creates a new entry with multiple fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.with(args...)
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	l.Warn(fmt.Sprintf(format, args...))
}
