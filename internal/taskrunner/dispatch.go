package taskrunner

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/idgen"
)

// periodicWakeInterval is how often the supervisor checks which
// registered handlers are due. It must be finer than the shortest
// registered interval (scheduler_tick at 30s is the tightest default).
const periodicWakeInterval = 1 * time.Second

// PeriodicSpec is one (handler, interval) pair the supervisor dispatches
// on a fixed cadence, independent of any caller-driven enqueue.
type PeriodicSpec struct {
	HandlerName string
	Lane        string
	Interval    time.Duration
	Payload     func() map[string]any
}

type periodicEntry struct {
	spec    PeriodicSpec
	lastRun time.Time
}

// RegisterPeriodic adds spec to the supervisor's schedule. Call before
// StartPeriodicDispatch.
func (r *Runner) RegisterPeriodic(spec PeriodicSpec) {
	r.periodicMu.Lock()
	defer r.periodicMu.Unlock()
	r.periodic = append(r.periodic, &periodicEntry{spec: spec})
}

// StartPeriodicDispatch runs the supervisor fiber until ctx is done or
// Shutdown is called. Each wake computes which handlers are due and
// enqueues them with a fresh trace.
func (r *Runner) StartPeriodicDispatch(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(periodicWakeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.periodicStop():
				return
			case now := <-ticker.C:
				r.dispatchDue(ctx, now)
			}
		}
	}()
}

func (r *Runner) dispatchDue(ctx context.Context, now time.Time) {
	r.periodicMu.Lock()
	var due []*periodicEntry
	for _, e := range r.periodic {
		if e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.spec.Interval {
			e.lastRun = now
			due = append(due, e)
		}
	}
	r.periodicMu.Unlock()

	for _, e := range due {
		payload := map[string]any{}
		if e.spec.Payload != nil {
			payload = e.spec.Payload()
		}
		traceID := idgen.Trace()
		if _, err := r.Enqueue(ctx, e.spec.Lane, e.spec.HandlerName, payload, traceID, "", "", ""); err != nil {
			slog.Warn("taskrunner.periodic_dispatch_failed", "handler", e.spec.HandlerName, "error", err)
		}
	}
}

func (r *Runner) periodicStop() <-chan struct{} {
	r.periodicMu.Lock()
	defer r.periodicMu.Unlock()
	if r.periodicStopCh == nil {
		r.periodicStopCh = make(chan struct{})
	}
	return r.periodicStopCh
}

func (r *Runner) stopPeriodicDispatch() {
	r.periodicMu.Lock()
	defer r.periodicMu.Unlock()
	if r.periodicStopCh == nil {
		r.periodicStopCh = make(chan struct{})
	}
	select {
	case <-r.periodicStopCh:
	default:
		close(r.periodicStopCh)
	}
}
