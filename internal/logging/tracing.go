package logging

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// NewTraceLogHandler wraps baseHandler and adds the active span to every record.
// With a non-empty project the Google Cloud Logging trace fields are used so the
// logs are grouped with the trace, otherwise plain trace_id/span_id fields.
//
// NOTE: Requires the use of the *Context slog methods to get the tracing info
func NewTraceLogHandler(baseHandler slog.Handler, project string) *traceLogHandler {
	return &traceLogHandler{base: baseHandler, project: project}
}

type traceLogHandler struct {
	base    slog.Handler
	project string
}

func (h *traceLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *traceLogHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return h.base.Handle(ctx, r)
	}

	if h.project == "" {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
		return h.base.Handle(ctx, r)
	}

	// https://docs.cloud.google.com/logging/docs/agent/logging/configuration#special-fields
	r.AddAttrs(
		slog.String("logging.googleapis.com/trace", fmt.Sprintf("projects/%s/traces/%s", h.project, sc.TraceID().String())),
		slog.String("logging.googleapis.com/spanId", sc.SpanID().String()),
		slog.Bool("logging.googleapis.com/trace_sampled", sc.TraceFlags().IsSampled()),
	)
	return h.base.Handle(ctx, r)
}

func (h *traceLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewTraceLogHandler(h.base.WithAttrs(attrs), h.project)
}

func (h *traceLogHandler) WithGroup(name string) slog.Handler {
	return NewTraceLogHandler(h.base.WithGroup(name), h.project)
}

var _ slog.Handler = (*traceLogHandler)(nil)
