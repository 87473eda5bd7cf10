package policy

import "strings"

// Engine evaluates Context against the R1-R8 rule set. Unlike the
// allow-composition pipeline this is modeled after, Engine denies by
// default: a call must affirmatively clear every rule to be allowed.
type Engine struct {
	safeTools map[string]bool
}

// New builds an Engine. safeTools is the fixed SAFE_TOOLS set (status
// query, log search, the unlock command handler) that remains callable
// during lockdown.
func New(safeTools []string) *Engine {
	set := make(map[string]bool, len(safeTools))
	for _, t := range safeTools {
		set[t] = true
	}
	return &Engine{safeTools: set}
}

// Decide runs the ordered rule set, first match wins. It is a pure
// function: no I/O beyond the two callbacks on Context, which read
// already-loaded state.
func (e *Engine) Decide(ctx Context) Decision {
	// R1: lockdown
	if ctx.SystemState.Lockdown && !e.safeTools[ctx.ToolName] {
		return deny("R1", "lockdown")
	}

	// R2: restarting
	if ctx.SystemState.Restarting {
		return deny("R2", "restarting")
	}

	// R3: wildcard/explicit permit
	if !ctx.Permitted(ctx.PrincipalID, ctx.ToolName) && !ctx.Permitted(ctx.PrincipalID, "*") {
		return deny("R3", "not_permitted")
	}

	// R4: unknown tool
	info, registered := ctx.Tool(ctx.ToolName)
	if !registered {
		return deny("R4", "unknown_tool")
	}

	// R5: session-scoped tools
	if info.SessionScoped && !ctx.Governance.IsPrimaryForThread {
		return deny("R5", "agent_scope")
	}

	// R6: risk tier
	if info.MinRiskTier > ctx.Governance.RiskTier {
		return deny("R6", "governance.risk_tier")
	}

	// R7: path allowlist
	if len(info.FilesystemPaths) > 0 && !allPathsAllowed(info.FilesystemPaths, ctx.Governance.AllowedPaths) {
		return deny("R7", "path_denied")
	}

	// R8: action cap
	if ctx.Governance.MaxActionsPerStep > 0 && ctx.ToolCallsInTrace >= ctx.Governance.MaxActionsPerStep {
		return deny("R8", "max_actions_per_step")
	}

	return allow("R3")
}

func allPathsAllowed(paths, allowlist []string) bool {
	for _, p := range paths {
		if !pathAllowed(p, allowlist) {
			return false
		}
	}
	return true
}

func pathAllowed(path string, allowlist []string) bool {
	for _, prefix := range allowlist {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
