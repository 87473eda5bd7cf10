// Package tools implements the tool registry and bounded execution
// runtime: a registry of named handlers, argument schema
// validation, timeout-capped execution, and the host-execution tool's
// sandboxing.
package tools

import "github.com/nextlevelbuilder/agentcore/internal/errkind"

// Result is the unified return type from tool execution, carried back
// through internal/orchestrator as a tool-role message.
type Result struct {
	ForLLM  string
	IsError bool
	Status  Status
	Kind    errkind.Kind // set when Status is error or timeout
}

// Status enumerates the possible tool.call.end outcomes.
type Status string

const (
	StatusOK      Status = "ok"
	StatusDenied  Status = "denied"
	StatusInvalid Status = "invalid_args"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

func OK(forLLM string) *Result { return &Result{ForLLM: forLLM, Status: StatusOK} }

func Denied(reason string) *Result {
	return &Result{ForLLM: "denied: " + reason, IsError: true, Status: StatusDenied}
}

func InvalidArgs(msg string) *Result {
	return &Result{ForLLM: "invalid arguments: " + msg, IsError: true, Status: StatusInvalid}
}

func Timeout() *Result {
	return &Result{ForLLM: "tool timed out", IsError: true, Status: StatusTimeout, Kind: errkind.TransientNetwork}
}

func Error(kind errkind.Kind, msg string) *Result {
	return &Result{ForLLM: msg, IsError: true, Status: StatusError, Kind: kind}
}
