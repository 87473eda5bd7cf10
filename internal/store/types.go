// Package store defines the entity types and storage interfaces of
// agentcore's data model. internal/store/pg implements these
// against Postgres; internal/store/memstore implements them in-memory
// for tests and standalone runs, following the existing Stores
// container pattern (internal/store/stores.go).
package store

import "time"

// Thread anchors a conversation.
type Thread struct {
	ID                   string
	OwnerUserID          string
	ChannelType          string
	ActiveAgentSet       []string
	CompactionThreshold  int
	Closed               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// MessageRole enumerates the three roles a Message may carry.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message belongs to exactly one thread and is immutable once created.
type Message struct {
	ID                  string
	ThreadID            string
	Role                MessageRole
	Content             string
	MediaRef            string
	MediaMIME           string
	CreatedAt           time.Time
	ExternalDeliveryID  string
}

// ExternalDelivery records one inbound delivery for dedup: (channel,
// external_id) is globally unique.
type ExternalDelivery struct {
	ID        string
	Channel   string
	ExternalID string
	ThreadID  string
	CreatedAt time.Time
}

// AgentBundle is the directory-shaped agent definition.
type AgentBundle struct {
	ID                         string
	Identity                   string
	Persona                    string
	Heartbeat                  string
	AllowedTools               []string
	PinnedSkills               []string // inline reusable-document text, prompt-assembly step 2
	RiskTier                   string // "low", "medium", "high"
	MaxActionsPerStep          int
	AllowedPaths               []string
	CanRequestPrivilegedChange bool
	UpdatedAt                  time.Time
}

// ToolPermission is an allow/deny row; tool_name "*" is a wildcard.
type ToolPermission struct {
	PrincipalID string
	ToolName    string
	Allow       bool
}

// Schedule drives the cron scheduler.
type Schedule struct {
	ID             string
	CronExpr       string
	ThreadID       string // empty means "no thread"; such schedules are skipped with an error event
	Enabled        bool
	CatchupCap     int
	LastDispatched time.Time
}

// ScheduleDispatch is the idempotency marker for "this due instant has
// been handled".
type ScheduleDispatch struct {
	ScheduleID string
	DueAt      time.Time
}

// PatchState enumerates the self-update pipeline's states.
type PatchState string

const (
	PatchProposed   PatchState = "proposed"
	PatchValidated  PatchState = "validated"
	PatchTested     PatchState = "tested"
	PatchApproved   PatchState = "approved"
	PatchApplied    PatchState = "applied"
	PatchVerified   PatchState = "verified"
	PatchRolledBack PatchState = "rolled_back"
	PatchRejected   PatchState = "rejected"
	PatchFailed     PatchState = "failed"
)

// Evidence is the evidence packet a patch proposal must carry in full
// before it can move past validation.
type Evidence struct {
	FileRefs        []string
	LineRefs        []string
	PolicyRefs      []string
	InvariantChecks []string
}

// PatchRecord is a self-update proposal and its lifecycle.
type PatchRecord struct {
	TraceID               string // primary key
	State                 PatchState
	BaselineRef           string
	Evidence              Evidence
	ArtifactSchemaVersion string
	Diff                  string
	FailureCode           string
	ProposedAt            time.Time
	ValidatedAt           time.Time
	TestedAt              time.Time
	ApprovedAt            time.Time
	AppliedAt             time.Time
	TerminalAt            time.Time
}

// SystemState is the singleton row gating tool execution.
type SystemState struct {
	Lockdown       bool
	Restarting     bool
	UnlockCode     string
	UnlockCodeTTL  time.Time
}
