package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
)

// EventStore is an in-memory eventlog.Store, used by tests and by
// standalone runs that don't need durable audit history.
type EventStore struct {
	mu     sync.RWMutex
	events []eventlog.Event
}

func NewEventStore() *EventStore { return &EventStore{} }

func (s *EventStore) Append(_ context.Context, e eventlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *EventStore) Search(_ context.Context, f eventlog.Filters, b eventlog.Bounds) ([]eventlog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]eventlog.Event, 0, len(s.events))
	for _, e := range s.events {
		if f.TraceID != "" && e.TraceID != f.TraceID {
			continue
		}
		if f.ThreadID != "" && e.ThreadID != f.ThreadID {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.Component != "" && e.Component != f.Component {
			continue
		}
		if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && e.CreatedAt.After(f.Until) {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	offset := b.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if b.Limit > 0 && b.Limit < len(matched) {
		matched = matched[:b.Limit]
	}
	return matched, nil
}
