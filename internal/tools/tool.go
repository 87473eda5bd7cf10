package tools

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/policy"
)

// SideEffectClass lets the registry and the host-exec tool reason about
// blast radius independent of risk tier.
type SideEffectClass string

const (
	SideEffectNone        SideEffectClass = "none"        // read-only
	SideEffectLocal       SideEffectClass = "local"        // writes local state (memory, thread)
	SideEffectFilesystem  SideEffectClass = "filesystem"
	SideEffectHostProcess SideEffectClass = "host_process"
	SideEffectNetwork     SideEffectClass = "network"
)

// Tool is one registered handler.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a JSON-schema-shaped map, validated against
	// call arguments via go-playground/validator struct tags on the
	// decoded argument struct (see ValidateArgs).
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) *Result
}

// Declaration carries registry metadata the policy engine and runtime
// need: minimum risk tier (rule R6), declared timeout, and whether the
// tool is session-scoped (R5) or resolves filesystem paths (R7).
// FilesystemPaths, when non-nil, is invoked per-call to resolve the
// concrete paths that invocation would touch.
type Declaration struct {
	Tool          Tool
	MinRiskTier   policy.RiskTier
	Timeout       time.Duration
	SideEffect    SideEffectClass
	SessionScoped bool

	FilesystemPaths func(args map[string]any) []string

	// ValidateArgs decodes and validates args against the tool's
	// argument schema, typically by building a tagged struct and
	// running it through go-playground/validator. Nil means the tool
	// has no structured schema beyond Parameters()'s JSON-schema hint.
	ValidateArgs func(args map[string]any) error
}
