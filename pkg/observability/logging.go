package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is a structured logger for geodash components
type Logger struct {
	*slog.Logger
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// NewLogger creates a new structured logger writing JSON to stdout
func NewLogger(component string, level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stdout, component, level, "json")
}

// NewLoggerWithWriter creates a logger with an explicit destination and format.
// Format is "json" or "text"; anything else falls back to json.
func NewLoggerWithWriter(w io.Writer, component string, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler).With(
		slog.String("component", component),
		slog.String("system", "geodash"),
	)

	return &Logger{Logger: logger}
}

// Default returns the process-wide logger used when none is injected.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = NewLoggerWithWriter(os.Stderr, "geodash", slog.LevelInfo, "text")
	})
	return defaultLogger
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a config level name onto a slog level. Unknown names are info.
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

// WithContext returns a logger carrying the trace and span IDs of ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if tid, sid, ok := spanIDs(ctx); ok {
		return &Logger{Logger: l.Logger.With(
			slog.String("trace_id", tid),
			slog.String("span_id", sid),
		)}
	}
	return l
}

// WithComponent returns a logger with a different component name
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", component))}
}

// WithSession returns a logger with session-specific fields
func (l *Logger) WithSession(identity string) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.String("session_id", identity),
		),
	}
}

// WithTask returns a logger with task-specific fields
func (l *Logger) WithTask(key, runID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.String("task_key", key),
			slog.String("run_id", runID),
		),
	}
}

// WithOperation returns a logger tagged with a bridge operation name
func (l *Logger) WithOperation(operation string) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.String("operation", operation),
		),
	}
}

// TaskTransition logs a task state change
func (l *Logger) TaskTransition(key, from, to string) {
	l.Debug("task state changed",
		slog.String("task_key", key),
		slog.String("from_state", from),
		slog.String("to_state", to),
	)
}

// OperationFailed logs a failed bridge operation
func (l *Logger) OperationFailed(operation string, err error) {
	l.Error("operation failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// SessionCreated logs a session registration
func (l *Logger) SessionCreated(identity, username, module string) {
	l.Info("session created",
		slog.String("session_id", identity),
		slog.String("username", username),
		slog.String("module", module),
	)
}

// SessionCleaned logs a session teardown
func (l *Logger) SessionCleaned(identity string) {
	l.Info("session cleaned up",
		slog.String("session_id", identity),
	)
}
