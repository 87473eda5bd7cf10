// Package eventlog implements the append-only audit trail. Every
// decision in the system is recorded here; no derived state may
// contradict it.
package eventlog

import "time"

// Event is the append-only audit record.
type Event struct {
	ID                  string         `json:"id"`
	TraceID             string         `json:"trace_id"`
	SpanID              string         `json:"span_id"`
	ParentSpanID        string         `json:"parent_span_id,omitempty"`
	EventType           string         `json:"event_type"`
	Component           string         `json:"component"`
	ActorKind           string         `json:"actor_kind"`
	ActorID             string         `json:"actor_id"`
	ThreadID            string         `json:"thread_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	Payload             map[string]any `json:"payload,omitempty"`
	PayloadRedacted     map[string]any `json:"payload_redacted,omitempty"`
}

// Actor identifies who/what caused an event.
type Actor struct {
	Kind string // "user", "agent", "system", "scheduler", "operator"
	ID   string
}

// Filters narrows a Search call.
type Filters struct {
	TraceID   string
	ThreadID  string
	EventType string
	Component string
	Since     time.Time
	Until     time.Time
}

// Bounds paginates a Search call.
type Bounds struct {
	Limit  int
	Offset int
}
