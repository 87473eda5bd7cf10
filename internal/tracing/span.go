package tracing

import (
	"context"

	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/idgen"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NewCollector builds a Collector that writes every completed span to
// the event log, the authoritative record, and, if tracer is non-nil,
// mirrors the same span into OpenTelemetry so operators get a
// Jaeger/Tempo view without the event log ever depending on it.
func NewCollector(writer *eventlog.Writer, actor eventlog.Actor, component string, tracer trace.Tracer) *Collector {
	return &Collector{
		Tracer: tracer,
		Emit: func(ctx context.Context, spanID, parentSpanID, name string, attrs map[string]any, err error) {
			traceID := TraceIDFromContext(ctx)
			if traceID == "" {
				return
			}
			if attrs == nil {
				attrs = map[string]any{}
			}
			if err != nil {
				attrs["error"] = err.Error()
			}
			threadID, _ := attrs["thread_id"].(string)
			delete(attrs, "thread_id")

			if _, emitErr := writer.Emit(ctx, name, component, actor, attrs, traceID, spanID, parentSpanID, threadID); emitErr != nil {
				return
			}
			if tracer != nil {
				mirrorOtel(ctx, tracer, name, attrs, err)
			}
		},
	}
}

// StartSpan allocates a new span id nested under ctx's current parent
// span and returns a context for any further-nested children together
// with the new span's own id and its parent's id, ready to pass to a
// Collector's Emit once the work completes.
func StartSpan(ctx context.Context) (spanCtx context.Context, spanID, parentSpanID string) {
	spanID = idgen.Span()
	parentSpanID = ParentSpanIDFromContext(ctx)
	spanCtx = WithParentSpanID(ctx, spanID)
	return spanCtx, spanID, parentSpanID
}

// mirrorOtel reports a span that has already completed. Spans in this
// system are recorded retrospectively (the event log is the source of
// truth), so this uses Start/End back to back rather than holding a
// live span object across the traced work.
func mirrorOtel(ctx context.Context, tracer trace.Tracer, name string, attrs map[string]any, err error) {
	_, span := tracer.Start(ctx, name)
	defer span.End()
	span.SetAttributes(toOtelAttrs(attrs)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func toOtelAttrs(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		default:
			out = append(out, attribute.String(k, "unsupported"))
		}
	}
	return out
}
