// Package policy implements the deny-by-default tool-access decision
// function: a single synchronous pure function that
// evaluates an ordered rule set and returns Allow or a typed Deny.
package policy

// Decision is the outcome of evaluating Context against the rule set.
type Decision struct {
	Allowed    bool
	RuleID     string // "R1".."R8"; an Allow always carries "R3"
	ReasonCode string
}

// Allow reports a permit decision carrying the rule that matched (R3,
// the only rule that can itself grant access).
func allow(ruleID string) Decision { return Decision{Allowed: true, RuleID: ruleID} }

// deny reports a refusal carrying the rule and reason code.
func deny(ruleID, reason string) Decision {
	return Decision{Allowed: false, RuleID: ruleID, ReasonCode: reason}
}

// SystemState is the subset of system state the engine must see.
type SystemState struct {
	Lockdown   bool
	Restarting bool
}

// AgentGovernance mirrors the agent bundle's identity-frontmatter
// governance fields. These are immutable by the agent.
type AgentGovernance struct {
	AgentID              string
	RiskTier             RiskTier
	MaxActionsPerStep    int
	AllowedPaths         []string
	IsPrimaryForThread   bool // eligible to call session-scoped tools (R5)
}

// RiskTier is an ordered enum: low < medium < high.
type RiskTier int

const (
	RiskLow RiskTier = iota
	RiskMedium
	RiskHigh
)

func ParseRiskTier(s string) RiskTier {
	switch s {
	case "high":
		return RiskHigh
	case "medium":
		return RiskMedium
	default:
		return RiskLow
	}
}

// ToolInfo is what the registry exposes for policy evaluation: whether
// the tool is registered, its minimum risk tier, and whether it is
// session-scoped or filesystem-scoped.
type ToolInfo struct {
	Registered      bool
	MinRiskTier     RiskTier
	SessionScoped   bool
	FilesystemPaths []string // resolved absolute paths the call would touch; empty if N/A
}

// Context carries everything a single decide() call needs.
type Context struct {
	PrincipalID      string
	ToolName         string
	ToolArgs         map[string]any
	ThreadID         string
	TraceID          string
	SystemState      SystemState
	Governance       AgentGovernance
	ToolCallsInTrace int // count of tool.call.start already observed for this trace_id

	// Permitted reports whether (principal, tool) has an allow row in
	// the tool permission table. Rule R3 calls it once with the tool
	// name and once with "*".
	Permitted func(principal, tool string) bool

	// Tool resolves registry metadata for the named tool, and reports
	// whether it is registered at all.
	Tool func(name string) (ToolInfo, bool)
}
