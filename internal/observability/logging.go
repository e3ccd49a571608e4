// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	operatorIDKey
	traceIDKey
	applicationNoKey
)

// WithRequestID returns ctx carrying the request id for log records.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithOperatorID returns ctx carrying the signed-in operator.
func WithOperatorID(ctx context.Context, id uint) context.Context {
	return context.WithValue(ctx, operatorIDKey, id)
}

// WithTraceID returns ctx carrying the request trace id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// WithApplicationNo returns ctx carrying the application being worked on.
func WithApplicationNo(ctx context.Context, no string) context.Context {
	return context.WithValue(ctx, applicationNoKey, no)
}

// OperatorIDFrom reports the operator stored by WithOperatorID.
func OperatorIDFrom(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(operatorIDKey).(uint)
	return id, ok
}

// contextHandler copies the request values above onto every record.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		r.AddAttrs(slog.String("request_id", v))
	}
	if v, ok := ctx.Value(operatorIDKey).(uint); ok {
		r.AddAttrs(slog.Uint64("operator_id", uint64(v)))
	}
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		r.AddAttrs(slog.String("trace_id", v))
	}
	if v, ok := ctx.Value(applicationNoKey).(string); ok {
		r.AddAttrs(slog.String("application_no", v))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// ParseLevel maps LOG_LEVEL values onto slog levels, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// NewLogger builds the context-aware logger: JSON in production, text
// everywhere else.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if env == "production" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(contextHandler{h})
}

// GlobalLogger is shared by every package. SetLogger replaces it once the
// configuration is loaded.
var GlobalLogger = NewLogger(os.Stdout, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

// SetLogger installs l as GlobalLogger and the slog default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	GlobalLogger = l
	slog.SetDefault(l)
}

// RepoLogger logs writes and unexpected failures of one table. Writes are
// debug level; expected domain errors are not logged here at all.
type RepoLogger struct {
	table string
}

// NewRepoLogger creates a RepoLogger for table.
func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table}
}

// Wrote records a successful write.
func (l *RepoLogger) Wrote(ctx context.Context, operation string, attrs ...slog.Attr) {
	GlobalLogger.LogAttrs(ctx, slog.LevelDebug, "repository write",
		append([]slog.Attr{slog.String("table", l.table), slog.String("operation", operation)}, attrs...)...)
}

// Failed records a storage failure.
func (l *RepoLogger) Failed(ctx context.Context, operation string, err error) {
	if err == nil {
		return
	}
	GlobalLogger.LogAttrs(ctx, slog.LevelError, "repository failure",
		slog.String("table", l.table),
		slog.String("operation", operation),
		slog.String("error", err.Error()))
}

// LogBackgroundError reports a failure in work that no caller waits on:
// event publishing, mail delivery, scheduled jobs.
func LogBackgroundError(ctx context.Context, task string, err error, attrs ...slog.Attr) {
	GlobalLogger.LogAttrs(ctx, slog.LevelError, "background task failed",
		append([]slog.Attr{slog.String("task", task), slog.String("error", err.Error())}, attrs...)...)
}
