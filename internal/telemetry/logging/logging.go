// Package logging wraps log/slog with trace/span correlation, following the
// teacher's engine/telemetry/logging.Logger wrapper — generalized here to
// the three levels the DTU client actually emits at (info/warn/error) and
// correlated against the real otel span in context rather than the
// teacher's hand-rolled tracer.
package logging

import (
	"context"
	"log/slog"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// Logger is the minimal interface the rest of the gateway logs through.
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

type correlatedLogger struct{ base *slog.Logger }

// New returns a correlated Logger wrapping base, or slog.Default() if nil.
func New(base *slog.Logger) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &correlatedLogger{base: base}
}

func (l *correlatedLogger) Info(ctx context.Context, msg string, args ...any) {
	l.base.InfoContext(ctx, msg, l.correlate(ctx, args)...)
}

func (l *correlatedLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.base.WarnContext(ctx, msg, l.correlate(ctx, args)...)
}

func (l *correlatedLogger) Error(ctx context.Context, msg string, args ...any) {
	l.base.ErrorContext(ctx, msg, l.correlate(ctx, args)...)
}

func (l *correlatedLogger) correlate(ctx context.Context, args []any) []any {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return args
	}
	return append(args, slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
}
