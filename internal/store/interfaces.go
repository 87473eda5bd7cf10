package store

import (
	"context"
	"time"
)

// ThreadStore persists and resolves Thread rows.
type ThreadStore interface {
	Create(ctx context.Context, t Thread) error
	Get(ctx context.Context, id string) (Thread, bool, error)
	FindOpenByOwnerChannel(ctx context.Context, ownerUserID, channelType string) (Thread, bool, error)
	Close(ctx context.Context, id string) error
	Update(ctx context.Context, t Thread) error
}

// MessageStore persists immutable Message rows and serves thread tails.
type MessageStore interface {
	Create(ctx context.Context, m Message) error
	Tail(ctx context.Context, threadID string, n int) ([]Message, error)
	CountSince(ctx context.Context, threadID string, sinceMessageID string) (int, error)
}

// DeliveryStore enforces (channel, external_id) dedup so a redelivered
// webhook never produces a second thread message.
type DeliveryStore interface {
	// Insert returns (inserted=false, nil) without error when the
	// (channel, external_id) pair already exists — a duplicate delivery
	// short-circuits to a no-op.
	Insert(ctx context.Context, d ExternalDelivery) (inserted bool, err error)
}

// AgentStore resolves agent bundles by id.
type AgentStore interface {
	Get(ctx context.Context, id string) (AgentBundle, bool, error)
	List(ctx context.Context) ([]AgentBundle, error)
}

// PermissionStore backs policy rule R3.
type PermissionStore interface {
	Permitted(ctx context.Context, principalID, toolName string) (bool, error)
}

// ScheduleStore resolves active schedules for the cron scheduler.
type ScheduleStore interface {
	ListEnabled(ctx context.Context) ([]Schedule, error)
	Get(ctx context.Context, id string) (Schedule, bool, error)
	UpdateLastDispatched(ctx context.Context, id string, at time.Time) error
}

// DispatchStore enforces (schedule_id, due_at) dedup so a due instant is
// dispatched exactly once even when two scheduler ticks race it.
type DispatchStore interface {
	// Insert returns (inserted=false, nil) when the instant was already
	// dispatched — the caller treats this as "already dispatched".
	Insert(ctx context.Context, d ScheduleDispatch) (inserted bool, err error)
}

// PatchStore persists self-update PatchRecord rows through their
// lifecycle.
type PatchStore interface {
	Create(ctx context.Context, p PatchRecord) error
	Get(ctx context.Context, traceID string) (PatchRecord, bool, error)
	Update(ctx context.Context, p PatchRecord) error
	ListByState(ctx context.Context, state PatchState) ([]PatchRecord, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// SystemStateStore persists the singleton lockdown/restarting row.
type SystemStateStore interface {
	Get(ctx context.Context) (SystemState, error)
	Set(ctx context.Context, s SystemState) error
}

// Stores is the top-level container, following the existing Stores
// pattern (internal/store/stores.go): every field is populated in
// standalone mode since agentcore has no managed/unmanaged split, but
// the container shape keeps wiring in cmd/agentcore uniform.
type Stores struct {
	Threads     ThreadStore
	Messages    MessageStore
	Deliveries  DeliveryStore
	Agents      AgentStore
	Permissions PermissionStore
	Schedules   ScheduleStore
	Dispatches  DispatchStore
	Patches     PatchStore
	SystemState SystemStateStore
}
