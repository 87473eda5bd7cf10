// Package protocol defines the wire-level vocabulary shared by every
// component of the core: entity ID prefixes and event-type names.
package protocol

// Entity ID prefixes. Every entity ID is a type-prefixed opaque string;
// consumers may route on prefix alone without parsing the rest.
const (
	PrefixUser     = "usr_"
	PrefixThread   = "thr_"
	PrefixMessage  = "msg_"
	PrefixTrace    = "trc_"
	PrefixSpan     = "spn_"
	PrefixSchedule = "sch_"
	PrefixEvent    = "evt_"
	PrefixTask     = "tsk_"
)
