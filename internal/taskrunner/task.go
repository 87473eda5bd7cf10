package taskrunner

import "context"

// Task is one unit of work submitted to a lane.
type Task struct {
	ID               string
	Lane             string
	HandlerName      string
	Payload          map[string]any
	TraceID          string
	ParentSpanID     string
	ThreadID         string
	SerializationKey string // empty means unserialized; otherwise at most one runs at a time
	Attempt          int
}

// Handler processes one task. Returning an error classified as
// transient by errkind triggers a retry; any other error is terminal
// and the task goes straight to the dead letter.
type Handler func(ctx context.Context, t *Task) error

// HandlerSpec registers a Handler along with its retry override.
type HandlerSpec struct {
	Handler     Handler
	MaxAttempts int // 0 uses the runner's configured default
}
