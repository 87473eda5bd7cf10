package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDPrefixesAreUniqueAndUnderscoreTerminated(t *testing.T) {
	prefixes := []string{
		PrefixUser, PrefixThread, PrefixMessage, PrefixTrace,
		PrefixSpan, PrefixSchedule, PrefixEvent, PrefixTask,
	}
	seen := make(map[string]bool, len(prefixes))
	for _, p := range prefixes {
		assert.True(t, strings.HasSuffix(p, "_"), "prefix %q must end in underscore", p)
		assert.False(t, seen[p], "duplicate prefix %q", p)
		seen[p] = true
	}
}

func TestEventTypeNamesAreDotSeparatedLowercase(t *testing.T) {
	events := []string{
		EventChannelInbound, EventChannelInboundBatch, EventChannelOutbound, EventChannelOutboundFail,
		EventAgentStepStart, EventAgentStepEnd, EventAgentStepCancelled, EventAgentDelegate,
		EventToolCallStart, EventToolCallEnd,
		EventModelRunStart, EventModelRunEnd, EventModelFallback, EventModelRunError,
		EventScheduleTrigger, EventScheduleError,
		EventSelfupdateProposed, EventSelfupdateValidated, EventSelfupdateTested,
		EventSelfupdateApproved, EventSelfupdateApplied, EventSelfupdateVerified,
		EventSelfupdateRolledBack, EventSelfupdateRejected, EventSelfupdateFailed,
		EventSelfupdateRollback, EventSelfupdateInvariant,
		EventPolicyDecision,
		EventMemoryDegraded, EventMemoryPolicyRedact, EventMemoryPolicyDeny,
		EventTaskDeadLetter, EventTaskDroppedOnShutdown, EventTaskRetry,
		EventLockdownTriggered, EventLockdownCleared,
		EventClockRegression,
		EventInvariantViolated,
	}
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		assert.Equal(t, strings.ToLower(e), e, "event %q must be lowercase", e)
		assert.NotContains(t, e, " ", "event %q must not contain spaces", e)
		assert.Contains(t, e, ".", "event %q must be dot-separated", e)
		assert.False(t, seen[e], "duplicate event type %q", e)
		seen[e] = true
	}
}

func TestProtocolVersionIsPositive(t *testing.T) {
	assert.Greater(t, ProtocolVersion, 0)
}
