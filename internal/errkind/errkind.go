// Package errkind classifies errors by kind rather than by matching
// human-readable strings, so task-level retry policy and orchestrator
// fallback can dispatch on kind alone.
package errkind

import (
	"errors"
	"net"
	"strings"
)

type Kind string

const (
	TransientNetwork      Kind = "transient.network"
	TransientDBLocked     Kind = "transient.db_locked"
	PermanentValidation   Kind = "permanent.validation"
	PermanentPolicyDenied Kind = "permanent.policy_denied"
	PermanentNotFound     Kind = "permanent.not_found"
	DegradedMemory        Kind = "degraded.memory"
	DegradedProvider      Kind = "degraded.provider"
	FatalInvariant        Kind = "fatal.invariant"
)

// Retryable reports whether the runner should retry a task that failed
// with this kind. Only transient.* kinds are retried.
func (k Kind) Retryable() bool {
	return k == TransientNetwork || k == TransientDBLocked
}

// Error wraps an underlying error with a classified kind and an optional
// code (e.g. a policy deny reason or a self-update failure code).
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return string(e.Kind) + "(" + e.Code + "): " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// ClassifyOf extracts the Kind from err if it (or something it wraps) is
// an *Error; otherwise it classifies net.Error values as
// transient.network and falls back to sniffing the error message.
func ClassifyOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return TransientNetwork
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return TransientNetwork
	case strings.Contains(msg, "deadlock"), strings.Contains(msg, "lock"):
		return TransientDBLocked
	case strings.Contains(msg, "not found"):
		return PermanentNotFound
	default:
		return PermanentValidation
	}
}

// Code returns the code carried on err if it's (or wraps) an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
