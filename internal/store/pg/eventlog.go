package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
)

// EventStore implements eventlog.Store against Postgres. Rows are never
// updated or deleted within a process lifetime.
type EventStore struct{ db *sql.DB }

func NewEventStore(db *sql.DB) *EventStore { return &EventStore{db: db} }

func (s *EventStore) Append(ctx context.Context, e eventlog.Event) error {
	var payloadJSON, redactedJSON []byte
	if e.Payload != nil {
		payloadJSON, _ = json.Marshal(e.Payload)
	}
	if e.PayloadRedacted != nil {
		redactedJSON, _ = json.Marshal(e.PayloadRedacted)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, trace_id, span_id, parent_span_id, event_type, component, actor_kind, actor_id, thread_id, created_at, payload_json, payload_redacted_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.TraceID, e.SpanID, e.ParentSpanID, e.EventType, e.Component, e.ActorKind, e.ActorID, e.ThreadID, e.CreatedAt, payloadJSON, redactedJSON,
	)
	if err != nil {
		return fmt.Errorf("pg: append event: %w", err)
	}
	return nil
}

func (s *EventStore) Search(ctx context.Context, f eventlog.Filters, b eventlog.Bounds) ([]eventlog.Event, error) {
	clauses := []string{"1=1"}
	args := []any{}
	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.TraceID != "" {
		add("trace_id = $%d", f.TraceID)
	}
	if f.ThreadID != "" {
		add("thread_id = $%d", f.ThreadID)
	}
	if f.EventType != "" {
		add("event_type = $%d", f.EventType)
	}
	if f.Component != "" {
		add("component = $%d", f.Component)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at <= $%d", f.Until)
	}

	limit := b.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit, b.Offset)
	query := fmt.Sprintf(`
		SELECT id, trace_id, span_id, parent_span_id, event_type, component, actor_kind, actor_id, thread_id, created_at, payload_json, payload_redacted_json
		FROM events WHERE %s ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d`,
		strings.Join(clauses, " AND "), len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pg: search events: %w", err)
	}
	defer rows.Close()

	var out []eventlog.Event
	for rows.Next() {
		var e eventlog.Event
		var payloadJSON, redactedJSON []byte
		if err := rows.Scan(&e.ID, &e.TraceID, &e.SpanID, &e.ParentSpanID, &e.EventType, &e.Component, &e.ActorKind, &e.ActorID, &e.ThreadID, &e.CreatedAt, &payloadJSON, &redactedJSON); err != nil {
			return nil, fmt.Errorf("pg: scan event: %w", err)
		}
		if len(payloadJSON) > 0 {
			_ = json.Unmarshal(payloadJSON, &e.Payload)
		}
		if len(redactedJSON) > 0 {
			_ = json.Unmarshal(redactedJSON, &e.PayloadRedacted)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
