// Package tracing carries trace/span identity across suspension points
// via context.Context, and forwards spans to the event
// log (internal/eventlog) as well as an OpenTelemetry exporter so
// operators get a Jaeger/Tempo view for free.
//
// The trace tree is represented as an adjacency relation (span_id →
// parent_span_id) rather than embedded references — arena+index
// reconstruction on read, .
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	keyTraceID ctxKey = iota
	keyParentSpanID
	keyCollector
)

// WithTraceID attaches the active trace ID to ctx. Every externally
// triggered execution root creates a new trace ID; tasks
// enqueued inside a span carry this forward automatically since
// context.Context crosses goroutine/queue boundaries by value.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceIDFromContext returns the active trace ID, or "" if none is set.
func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(keyTraceID).(string)
	return v
}

// WithParentSpanID records the span a newly opened span should nest
// under. Spans nest to form a tree.
func WithParentSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, keyParentSpanID, spanID)
}

// ParentSpanIDFromContext returns the current parent span ID, or "".
func ParentSpanIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(keyParentSpanID).(string)
	return v
}

// Collector is the sink a span is reported to on completion: the event
// log (authoritative) and, if configured, an OTel tracer (operator view).
type Collector struct {
	Emit   func(ctx context.Context, spanID, parentSpanID, name string, attrs map[string]any, err error)
	Tracer trace.Tracer
}

// WithCollector attaches the active Collector to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, keyCollector, c)
}

// CollectorFromContext returns the active Collector, or nil.
func CollectorFromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(keyCollector).(*Collector)
	return c
}
