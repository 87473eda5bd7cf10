package taskrunner

// Well-known lane names. The runner accepts any lane present in its
// config, but these four are the ones every deployment is expected to
// define, and callers outside this package reference them by name
// rather than duplicating the string literals.
const (
	LaneAgentPriority = "agent_priority"
	LaneAgentDefault  = "agent_default"
	LaneToolsIO       = "tools_io"
	LaneLocalLLM      = "local_llm"
)

// Well-known handler names shared across packages that enqueue or
// register them.
const (
	HandlerAgentStep     = "agent_step"
	HandlerChannelSend   = "channel_send"
	HandlerSchedulerTick = "scheduler_tick"
)
