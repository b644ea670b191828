package tracing

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SlogExporter exports finished spans as structured log lines instead of
// over OTLP. No OTLP collector exists in this deployment's dependency set
// (see DESIGN.md); this keeps spans genuinely flowing through the otel SDK
// while still landing somewhere an operator can read them.
type SlogExporter struct {
	logger *slog.Logger
}

// NewSlogExporter builds an exporter logging through logger, or
// slog.Default() if nil.
func NewSlogExporter(logger *slog.Logger) *SlogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogExporter{logger: logger}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *SlogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []any{
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.String("span_id", s.SpanContext().SpanID().String()),
			slog.Duration("duration", s.EndTime().Sub(s.StartTime())),
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, slog.Any(string(kv.Key), kv.Value.AsInterface()))
		}
		e.logger.InfoContext(ctx, "span "+s.Name(), attrs...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *SlogExporter) Shutdown(context.Context) error { return nil }
