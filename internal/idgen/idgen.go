// Package idgen generates type-prefixed opaque entity IDs. Bodies are
// UUIDv7 so IDs sort roughly by creation time, matching the existing
// use of uuid.Must(uuid.NewV7()) for primary keys.
package idgen

import "github.com/google/uuid"

func new(prefix string) string {
	return prefix + uuid.Must(uuid.NewV7()).String()
}

func User() string     { return new("usr_") }
func Thread() string   { return new("thr_") }
func Message() string  { return new("msg_") }
func Trace() string    { return new("trc_") }
func Span() string     { return new("spn_") }
func Schedule() string { return new("sch_") }
func Event() string    { return new("evt_") }
func Task() string     { return new("tsk_") }

// HasPrefix reports whether id carries the given type prefix, allowing
// callers to route on prefix alone without parsing the rest of the ID.
func HasPrefix(id, prefix string) bool {
	return len(id) >= len(prefix) && id[:len(prefix)] == prefix
}
