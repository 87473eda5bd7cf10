package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/idgen"
)

// Store persists events and serves ordered reads. internal/store/pg
// implements this against Postgres; internal/store/memstore implements
// it in-memory for tests and standalone mode.
type Store interface {
	Append(ctx context.Context, e Event) error
	Search(ctx context.Context, f Filters, b Bounds) ([]Event, error)
}

// Writer is the event log's single write path. It holds a per-write
// lock ensuring monotonic created_at per trace_id: rows are append-only
// for the life of the process, and every event carries a valid
// trace_id and span_id.
type Writer struct {
	store Store

	// FullRetention controls whether the unredacted payload is also
	// persisted. When false, only payload_redacted_json is stored.
	FullRetention bool

	mu          sync.Mutex
	lastByTrace map[string]time.Time
	regressionLogged map[string]bool
}

func NewWriter(store Store, fullRetention bool) *Writer {
	return &Writer{
		store:            store,
		FullRetention:    fullRetention,
		lastByTrace:      make(map[string]time.Time),
		regressionLogged: make(map[string]bool),
	}
}

// Emit writes one event atomically and returns its id. traceID and
// spanID must be non-empty; parentSpanID may be empty for a trace's
// root span.
func (w *Writer) Emit(ctx context.Context, eventType, component string, actor Actor, payload map[string]any, traceID, spanID, parentSpanID, threadID string) (string, error) {
	if traceID == "" {
		return "", fmt.Errorf("eventlog: emit %s: trace_id is required", eventType)
	}
	if spanID == "" {
		return "", fmt.Errorf("eventlog: emit %s: span_id is required", eventType)
	}

	now := w.nextTimestamp(ctx, traceID)

	e := Event{
		ID:              idgen.Event(),
		TraceID:         traceID,
		SpanID:          spanID,
		ParentSpanID:    parentSpanID,
		EventType:       eventType,
		Component:       component,
		ActorKind:       actor.Kind,
		ActorID:         actor.ID,
		ThreadID:        threadID,
		CreatedAt:       now,
		PayloadRedacted: Redact(payload),
	}
	if w.FullRetention {
		e.Payload = payload
	}

	if err := w.store.Append(ctx, e); err != nil {
		return "", fmt.Errorf("eventlog: append %s: %w", eventType, err)
	}
	return e.ID, nil
}

// nextTimestamp enforces per-trace monotonic created_at. If wall-clock
// time has regressed since the trace's last write, it advances past the
// previous timestamp and emits clock.regression once per occurrence.
func (w *Writer) nextTimestamp(ctx context.Context, traceID string) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UTC()
	prev, ok := w.lastByTrace[traceID]
	floor := prev.Add(time.Nanosecond)
	if ok && floor.After(now) {
		now = floor
		if !w.regressionLogged[traceID] {
			w.regressionLogged[traceID] = true
			slog.Warn("eventlog.clock_regression", "trace_id", traceID)
			// Emitted out-of-band (not through Emit, to avoid recursive
			// locking) — a lightweight direct append is sufficient since
			// this event carries no sensitive payload.
			go func() {
				_ = w.store.Append(context.Background(), Event{
					ID:        idgen.Event(),
					TraceID:   traceID,
					SpanID:    idgen.Span(),
					EventType: "clock.regression",
					Component: "eventlog",
					ActorKind: "system",
					CreatedAt: now,
				})
			}()
		}
	} else {
		delete(w.regressionLogged, traceID)
	}
	w.lastByTrace[traceID] = now
	return now
}

// Search returns events ordered by (created_at, id) ascending.
func (w *Writer) Search(ctx context.Context, f Filters, b Bounds) ([]Event, error) {
	return w.store.Search(ctx, f, b)
}
