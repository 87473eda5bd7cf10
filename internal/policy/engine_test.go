package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseContext() Context {
	return Context{
		PrincipalID: "agt_main",
		ToolName:    "search",
		ThreadID:    "thr_1",
		TraceID:     "trc_1",
		Governance: AgentGovernance{
			AgentID:            "agt_main",
			RiskTier:           RiskHigh,
			MaxActionsPerStep:  10,
			AllowedPaths:       []string{"/workspace"},
			IsPrimaryForThread: true,
		},
		Permitted: func(principal, tool string) bool { return true },
		Tool: func(name string) (ToolInfo, bool) {
			return ToolInfo{Registered: true, MinRiskTier: RiskLow}, true
		},
	}
}

func TestDecideAllowsWhenEveryRuleClears(t *testing.T) {
	e := New(nil)
	d := e.Decide(baseContext())
	assert.True(t, d.Allowed)
	assert.Equal(t, "R3", d.RuleID)
}

func TestDecideR1LockdownBlocksUnsafeTool(t *testing.T) {
	e := New([]string{"status"})
	c := baseContext()
	c.SystemState.Lockdown = true
	d := e.Decide(c)
	assert.False(t, d.Allowed)
	assert.Equal(t, "R1", d.RuleID)
	assert.Equal(t, "lockdown", d.ReasonCode)
}

func TestDecideR1LockdownAllowsSafeTool(t *testing.T) {
	e := New([]string{"search"})
	c := baseContext()
	c.SystemState.Lockdown = true
	d := e.Decide(c)
	assert.True(t, d.Allowed)
}

func TestDecideR2RestartingBlocksEverything(t *testing.T) {
	e := New([]string{"search"})
	c := baseContext()
	c.SystemState.Restarting = true
	d := e.Decide(c)
	assert.False(t, d.Allowed)
	assert.Equal(t, "R2", d.RuleID)
}

func TestDecideR4UnknownTool(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Tool = func(name string) (ToolInfo, bool) { return ToolInfo{}, false }
	d := e.Decide(c)
	assert.False(t, d.Allowed)
	assert.Equal(t, "R4", d.RuleID)
	assert.Equal(t, "unknown_tool", d.ReasonCode)
}

func TestDecideUnregisteredToolWithNoPermissionRowDeniesNotPermitted(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Permitted = func(principal, tool string) bool { return false }
	c.Tool = func(name string) (ToolInfo, bool) { return ToolInfo{}, false }
	d := e.Decide(c)
	assert.False(t, d.Allowed)
	assert.Equal(t, "R3", d.RuleID)
	assert.Equal(t, "not_permitted", d.ReasonCode)
}

func TestDecideR3NotPermitted(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Permitted = func(principal, tool string) bool { return false }
	d := e.Decide(c)
	assert.False(t, d.Allowed)
	assert.Equal(t, "R3", d.RuleID)
	assert.Equal(t, "not_permitted", d.ReasonCode)
}

func TestDecideR3WildcardPermission(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Permitted = func(principal, tool string) bool { return tool == "*" }
	d := e.Decide(c)
	assert.True(t, d.Allowed)
}

func TestDecideR5SessionScopedRequiresPrimary(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Governance.IsPrimaryForThread = false
	c.Tool = func(name string) (ToolInfo, bool) {
		return ToolInfo{Registered: true, MinRiskTier: RiskLow, SessionScoped: true}, true
	}
	d := e.Decide(c)
	assert.False(t, d.Allowed)
	assert.Equal(t, "R5", d.RuleID)
}

func TestDecideR6RiskTierExceeded(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Governance.RiskTier = RiskLow
	c.Tool = func(name string) (ToolInfo, bool) {
		return ToolInfo{Registered: true, MinRiskTier: RiskHigh}, true
	}
	d := e.Decide(c)
	assert.False(t, d.Allowed)
	assert.Equal(t, "R6", d.RuleID)
	assert.Equal(t, "governance.risk_tier", d.ReasonCode)
}

func TestDecideR7PathDenied(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Governance.AllowedPaths = []string{"/workspace"}
	c.Tool = func(name string) (ToolInfo, bool) {
		return ToolInfo{Registered: true, MinRiskTier: RiskLow, FilesystemPaths: []string{"/etc/passwd"}}, true
	}
	d := e.Decide(c)
	assert.False(t, d.Allowed)
	assert.Equal(t, "R7", d.RuleID)
}

func TestDecideR7PathAllowedByPrefix(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Governance.AllowedPaths = []string{"/workspace"}
	c.Tool = func(name string) (ToolInfo, bool) {
		return ToolInfo{Registered: true, MinRiskTier: RiskLow, FilesystemPaths: []string{"/workspace/foo.go"}}, true
	}
	d := e.Decide(c)
	assert.True(t, d.Allowed)
}

func TestDecideR8ActionCapExceeded(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Governance.MaxActionsPerStep = 3
	c.ToolCallsInTrace = 3
	d := e.Decide(c)
	assert.False(t, d.Allowed)
	assert.Equal(t, "R8", d.RuleID)
}

func TestDecideR8ZeroMeansUnbounded(t *testing.T) {
	e := New(nil)
	c := baseContext()
	c.Governance.MaxActionsPerStep = 0
	c.ToolCallsInTrace = 1000
	d := e.Decide(c)
	assert.True(t, d.Allowed)
}

func TestParseRiskTier(t *testing.T) {
	assert.Equal(t, RiskHigh, ParseRiskTier("high"))
	assert.Equal(t, RiskMedium, ParseRiskTier("medium"))
	assert.Equal(t, RiskLow, ParseRiskTier("low"))
	assert.Equal(t, RiskLow, ParseRiskTier("unknown"))
	assert.True(t, RiskLow < RiskMedium)
	assert.True(t, RiskMedium < RiskHigh)
}
