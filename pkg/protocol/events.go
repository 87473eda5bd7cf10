package protocol

// Event type names. Dot-separated, lowercase, and stable across
// versions since external consumers match on them.
const (
	EventChannelInbound      = "channel.inbound"
	EventChannelInboundBatch = "channel.inbound.batch"
	EventChannelOutbound     = "channel.outbound"
	EventChannelOutboundFail = "channel.outbound.failed"

	EventAgentStepStart     = "agent.step.start"
	EventAgentStepEnd       = "agent.step.end"
	EventAgentStepCancelled = "agent.step.cancelled"
	EventAgentDelegate      = "agent.delegate"

	EventToolCallStart = "tool.call.start"
	EventToolCallEnd   = "tool.call.end"

	EventModelRunStart = "model.run.start"
	EventModelRunEnd   = "model.run.end"
	EventModelFallback = "model.fallback"
	EventModelRunError = "model.run.error"

	EventScheduleTrigger = "schedule.trigger"
	EventScheduleError   = "schedule.error"

	EventSelfupdateProposed    = "selfupdate.proposed"
	EventSelfupdateValidated   = "selfupdate.validated"
	EventSelfupdateTested      = "selfupdate.tested"
	EventSelfupdateApproved    = "selfupdate.approved"
	EventSelfupdateApplied     = "selfupdate.applied"
	EventSelfupdateVerified    = "selfupdate.verified"
	EventSelfupdateRolledBack  = "selfupdate.rolled_back"
	EventSelfupdateRejected    = "selfupdate.rejected"
	EventSelfupdateFailed      = "selfupdate.failed"
	EventSelfupdateRollback    = "selfupdate.rollback"
	EventSelfupdateInvariant   = "selfupdate.invariant_violation"

	EventPolicyDecision = "policy.decision"

	EventMemoryDegraded       = "memory.degraded"
	EventMemoryPolicyRedact   = "memory.policy.redaction"
	EventMemoryPolicyDeny     = "memory.policy.denial"

	EventTaskDeadLetter        = "task.dead_letter"
	EventTaskDroppedOnShutdown = "task.dropped_on_shutdown"
	EventTaskRetry             = "task.retry"

	EventLockdownTriggered = "lockdown.triggered"
	EventLockdownCleared   = "lockdown.cleared"

	EventClockRegression = "clock.regression"

	EventInvariantViolated = "invariant.violated"
)

// Terminal-synthesis reason codes.
const (
	ReasonPlaceholderAfterToolLoop        = "placeholder_response_after_tool_loop"
	ReasonPlaceholderAfterTerminalSynth   = "placeholder_response_after_terminal_synthesis"
	ReasonProviderErrorTerminalSynthesis  = "provider_error_terminal_synthesis"
)

// Step terminal reasons.
const (
	StepReasonCompleted          = "completed"
	StepReasonMaxActionsPerStep  = "max_actions_per_step"
	StepReasonCancelled          = "cancelled"
	StepReasonError              = "error"
)

const ProtocolVersion = 1
