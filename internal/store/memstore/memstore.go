// Package memstore implements internal/store's interfaces entirely
// in-memory, for tests and for running agentcore standalone without a
// Postgres instance. It follows the existing cache-plus-RWMutex shape
// (internal/store/pg/sessions.go) minus the database-backed persistence.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// Stores builds a fully in-memory store.Stores.
func Stores() *store.Stores {
	return &store.Stores{
		Threads:     NewThreadStore(),
		Messages:    NewMessageStore(),
		Deliveries:  NewDeliveryStore(),
		Agents:      NewAgentStore(),
		Permissions: NewPermissionStore(),
		Schedules:   NewScheduleStore(),
		Dispatches:  NewDispatchStore(),
		Patches:     NewPatchStore(),
		SystemState: NewSystemStateStore(),
	}
}

type ThreadStore struct {
	mu   sync.RWMutex
	byID map[string]store.Thread
}

func NewThreadStore() *ThreadStore { return &ThreadStore{byID: make(map[string]store.Thread)} }

func (s *ThreadStore) Create(_ context.Context, t store.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[t.ID] = t
	return nil
}

func (s *ThreadStore) Get(_ context.Context, id string) (store.Thread, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	return t, ok, nil
}

func (s *ThreadStore) FindOpenByOwnerChannel(_ context.Context, ownerUserID, channelType string) (store.Thread, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.byID {
		if t.OwnerUserID == ownerUserID && t.ChannelType == channelType && !t.Closed {
			return t, true, nil
		}
	}
	return store.Thread{}, false, nil
}

func (s *ThreadStore) Close(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil
	}
	t.Closed = true
	t.UpdatedAt = time.Now().UTC()
	s.byID[id] = t
	return nil
}

func (s *ThreadStore) Update(_ context.Context, t store.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[t.ID] = t
	return nil
}

type MessageStore struct {
	mu       sync.RWMutex
	byThread map[string][]store.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{byThread: make(map[string][]store.Message)}
}

func (s *MessageStore) Create(_ context.Context, m store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.byThread[m.ThreadID]
	msgs = append(msgs, m)
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	s.byThread[m.ThreadID] = msgs
	return nil
}

func (s *MessageStore) Tail(_ context.Context, threadID string, n int) ([]store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.byThread[threadID]
	if n <= 0 || n >= len(msgs) {
		out := make([]store.Message, len(msgs))
		copy(out, msgs)
		return out, nil
	}
	out := make([]store.Message, n)
	copy(out, msgs[len(msgs)-n:])
	return out, nil
}

func (s *MessageStore) CountSince(_ context.Context, threadID string, sinceMessageID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.byThread[threadID]
	if sinceMessageID == "" {
		return len(msgs), nil
	}
	count := 0
	seen := false
	for _, m := range msgs {
		if seen {
			count++
		}
		if m.ID == sinceMessageID {
			seen = true
		}
	}
	if !seen {
		return len(msgs), nil
	}
	return count, nil
}

type DeliveryStore struct {
	mu   sync.Mutex
	seen map[string]store.ExternalDelivery
}

func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{seen: make(map[string]store.ExternalDelivery)}
}

func deliveryKey(channel, externalID string) string { return channel + "\x00" + externalID }

func (s *DeliveryStore) Insert(_ context.Context, d store.ExternalDelivery) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deliveryKey(d.Channel, d.ExternalID)
	if _, exists := s.seen[key]; exists {
		return false, nil
	}
	s.seen[key] = d
	return true, nil
}

type AgentStore struct {
	mu   sync.RWMutex
	byID map[string]store.AgentBundle
}

func NewAgentStore() *AgentStore { return &AgentStore{byID: make(map[string]store.AgentBundle)} }

func (s *AgentStore) Put(a store.AgentBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID] = a
}

func (s *AgentStore) Get(_ context.Context, id string) (store.AgentBundle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	return a, ok, nil
}

func (s *AgentStore) List(_ context.Context) ([]store.AgentBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AgentBundle, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type PermissionStore struct {
	mu   sync.RWMutex
	rows map[string]bool // "principal\x00tool" -> allow
}

func NewPermissionStore() *PermissionStore {
	return &PermissionStore{rows: make(map[string]bool)}
}

func (s *PermissionStore) Grant(principalID, toolName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[principalID+"\x00"+toolName] = true
}

func (s *PermissionStore) Permitted(_ context.Context, principalID, toolName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[principalID+"\x00"+toolName], nil
}

type ScheduleStore struct {
	mu   sync.RWMutex
	byID map[string]store.Schedule
}

func NewScheduleStore() *ScheduleStore { return &ScheduleStore{byID: make(map[string]store.Schedule)} }

func (s *ScheduleStore) Put(sc store.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sc.ID] = sc
}

func (s *ScheduleStore) ListEnabled(_ context.Context) ([]store.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Schedule, 0, len(s.byID))
	for _, sc := range s.byID {
		if sc.Enabled {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ScheduleStore) Get(_ context.Context, id string) (store.Schedule, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.byID[id]
	return sc, ok, nil
}

func (s *ScheduleStore) UpdateLastDispatched(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.byID[id]
	if !ok {
		return nil
	}
	sc.LastDispatched = at
	s.byID[id] = sc
	return nil
}

type DispatchStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewDispatchStore() *DispatchStore { return &DispatchStore{seen: make(map[string]bool)} }

func dispatchKey(scheduleID string, dueAt time.Time) string {
	return scheduleID + "\x00" + dueAt.UTC().Format(time.RFC3339Nano)
}

func (s *DispatchStore) Insert(_ context.Context, d store.ScheduleDispatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dispatchKey(d.ScheduleID, d.DueAt)
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

type PatchStore struct {
	mu   sync.RWMutex
	byID map[string]store.PatchRecord
}

func NewPatchStore() *PatchStore { return &PatchStore{byID: make(map[string]store.PatchRecord)} }

func (s *PatchStore) Create(_ context.Context, p store.PatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.TraceID] = p
	return nil
}

func (s *PatchStore) Get(_ context.Context, traceID string) (store.PatchRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[traceID]
	return p, ok, nil
}

func (s *PatchStore) Update(_ context.Context, p store.PatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.TraceID] = p
	return nil
}

func (s *PatchStore) ListByState(_ context.Context, state store.PatchState) ([]store.PatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.PatchRecord
	for _, p := range s.byID {
		if p.State == state {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProposedAt.Before(out[j].ProposedAt) })
	return out, nil
}

func (s *PatchStore) CountSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.byID {
		if p.ProposedAt.After(since) {
			count++
		}
	}
	return count, nil
}

type SystemStateStore struct {
	mu    sync.RWMutex
	state store.SystemState
}

func NewSystemStateStore() *SystemStateStore { return &SystemStateStore{} }

func (s *SystemStateStore) Get(_ context.Context) (store.SystemState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

func (s *SystemStateStore) Set(_ context.Context, st store.SystemState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}
