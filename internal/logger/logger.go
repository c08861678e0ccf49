// README: Structured JSON logger (one object per line on stdout) with request ids from context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Logger tags every entry with the owning service and the action being performed.
type Logger struct {
	service string
	base    *slog.Logger
}

func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout)
}

func NewWithWriter(service string, w io.Writer) *Logger {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
	return &Logger{
		service: service,
		base:    slog.New(h).With("service", service, "hostname", hostname),
	}
}

// Nop discards everything; used by tests and optional collaborators.
func Nop() *Logger {
	return NewWithWriter("nop", io.Discard)
}

func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func (l *Logger) Info(ctx context.Context, action, msg string, details map[string]any) {
	l.emit(ctx, slog.LevelInfo, action, msg, details, nil)
}

func (l *Logger) Debug(ctx context.Context, action, msg string, details map[string]any) {
	l.emit(ctx, slog.LevelDebug, action, msg, details, nil)
}

func (l *Logger) Warn(ctx context.Context, action, msg string, details map[string]any) {
	l.emit(ctx, slog.LevelWarn, action, msg, details, nil)
}

func (l *Logger) Error(ctx context.Context, action, msg string, err error, details map[string]any) {
	l.emit(ctx, slog.LevelError, action, msg, details, err)
}

func (l *Logger) emit(ctx context.Context, level slog.Level, action, msg string, details map[string]any, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := []any{"action", action, "request_id", RequestIDFrom(ctx)}
	if len(details) > 0 {
		attrs = append(attrs, "details", details)
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	l.base.Log(ctx, level, msg, attrs...)
}
