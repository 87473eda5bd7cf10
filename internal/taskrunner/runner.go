// Package taskrunner implements the in-process task runner: a bounded
// FIFO queue per named lane, a worker pool per lane, per-handler
// retries with exponential backoff and jitter, per-key serialization,
// a dead letter path, and graceful shutdown with a drain timeout.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nextlevelbuilder/agentcore/internal/config"
	"github.com/nextlevelbuilder/agentcore/internal/errkind"
	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/idgen"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
)

var (
	errLaneFull        = errors.New("taskrunner: lane is at capacity")
	errLaneRateLimited = errors.New("taskrunner: lane enqueue rate exceeded")
	errUnknownLane     = errors.New("taskrunner: unknown lane")
	errUnknownHandler  = errors.New("taskrunner: no handler registered for task")
	errRunnerShutdown  = errors.New("taskrunner: runner is shutting down")
)

// Runner owns the lanes, the registered handlers, and the serialization
// bookkeeping that gives agent_step one-step-at-a-time-per-thread
// semantics.
type Runner struct {
	cfg     config.TaskRunnerConfig
	events  *eventlog.Writer
	metrics *metrics

	lanes map[string]*lane

	handlersMu sync.RWMutex
	handlers   map[string]HandlerSpec

	serialMu    sync.Mutex
	serialBusy  map[string]bool
	serialQueue map[string][]*Task

	periodicMu     sync.Mutex
	periodic       []*periodicEntry
	periodicStopCh chan struct{}

	closed  atomic.Bool
	pending atomic.Int64 // tasks admitted (pushed or serial-queued) but not yet terminal
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Runner for cfg. reg may be nil, in which case metrics are
// registered against prometheus.DefaultRegisterer.
func New(cfg config.TaskRunnerConfig, events *eventlog.Writer, reg prometheus.Registerer) *Runner {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 32 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}

	lanes := make(map[string]*lane, len(cfg.Lanes))
	for name, lc := range cfg.Lanes {
		lanes[name] = newLane(name, lc)
	}

	return &Runner{
		cfg:         cfg,
		events:      events,
		metrics:     newMetrics(reg),
		lanes:       lanes,
		handlers:    make(map[string]HandlerSpec),
		serialBusy:  make(map[string]bool),
		serialQueue: make(map[string][]*Task),
	}
}

// RegisterHandler wires a named handler. Must be called before Start.
func (r *Runner) RegisterHandler(name string, spec HandlerSpec) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.handlers[name] = spec
}

func (r *Runner) getHandler(name string) (HandlerSpec, bool) {
	r.handlersMu.RLock()
	defer r.handlersMu.RUnlock()
	spec, ok := r.handlers[name]
	return spec, ok
}

// Start spawns each lane's worker pool. ctx bounds the lifetime of all
// workers; cancelling it is equivalent to an immediate (non-graceful)
// shutdown. Call Shutdown for the graceful path instead.
func (r *Runner) Start(ctx context.Context) {
	r.runCtx, r.cancel = context.WithCancel(ctx)
	for name, l := range r.lanes {
		for i := 0; i < l.workers; i++ {
			r.wg.Add(1)
			go r.workerLoop(r.runCtx, l)
		}
		r.metrics.laneDepth.WithLabelValues(name).Set(0)
		r.metrics.laneInFlight.WithLabelValues(name).Set(0)
	}
}

// Enqueue submits a task to laneName for handlerName. serializationKey,
// when non-empty, guarantees at most one task with that key runs at a
// time; later enqueues for the same key queue in FIFO order behind it.
func (r *Runner) Enqueue(ctx context.Context, laneName, handlerName string, payload map[string]any, traceID, parentSpanID, threadID, serializationKey string) (string, error) {
	if r.closed.Load() {
		r.dropOnShutdown(ctx, laneName, handlerName, traceID, parentSpanID, threadID)
		return "", errRunnerShutdown
	}

	l, ok := r.lanes[laneName]
	if !ok {
		return "", fmt.Errorf("%w: %s", errUnknownLane, laneName)
	}

	task := &Task{
		ID:               idgen.Task(),
		Lane:             laneName,
		HandlerName:      handlerName,
		Payload:          payload,
		TraceID:          traceID,
		ParentSpanID:     parentSpanID,
		ThreadID:         threadID,
		SerializationKey: serializationKey,
	}

	if serializationKey == "" {
		if err := r.push(l, task); err != nil {
			r.metrics.tasksDropped.WithLabelValues(laneName, dropReason(err)).Inc()
			return "", err
		}
		r.pending.Add(1)
		return task.ID, nil
	}

	r.serialMu.Lock()
	if r.serialBusy[serializationKey] {
		r.serialQueue[serializationKey] = append(r.serialQueue[serializationKey], task)
		r.serialMu.Unlock()
		r.pending.Add(1)
		return task.ID, nil
	}
	r.serialBusy[serializationKey] = true
	r.serialMu.Unlock()

	if err := r.push(l, task); err != nil {
		r.serialMu.Lock()
		r.serialBusy[serializationKey] = false
		r.serialMu.Unlock()
		r.metrics.tasksDropped.WithLabelValues(laneName, dropReason(err)).Inc()
		return "", err
	}
	r.pending.Add(1)
	return task.ID, nil
}

func (r *Runner) push(l *lane, t *Task) error {
	if err := l.tryPush(t); err != nil {
		return err
	}
	r.metrics.laneDepth.WithLabelValues(l.name).Set(float64(len(l.ch)))
	return nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, errLaneFull):
		return "lane_full"
	case errors.Is(err, errLaneRateLimited):
		return "rate_limited"
	default:
		return "unknown"
	}
}

func (r *Runner) dropOnShutdown(ctx context.Context, laneName, handlerName, traceID, parentSpanID, threadID string) {
	r.metrics.tasksDropped.WithLabelValues(laneName, "shutdown").Inc()
	if traceID == "" {
		slog.Warn("taskrunner.enqueue_after_shutdown", "lane", laneName, "handler", handlerName)
		return
	}
	_, _ = r.events.Emit(ctx, protocol.EventTaskDroppedOnShutdown, "taskrunner",
		eventlog.Actor{Kind: "system", ID: "taskrunner"},
		map[string]any{"lane": laneName, "handler": handlerName}, traceID, idgen.Span(), parentSpanID, threadID)
}

// workerLoop pulls from one lane's channel, running each task to
// completion (including its own retry loop) before picking up the next.
// Handler start order within the lane equals enqueue order. It never
// exits on an empty channel, only on ctx cancellation, since Shutdown
// drains via the pending counter rather than closing lane channels (a
// queued serialization continuation could otherwise race a close with
// a send and panic).
func (r *Runner) workerLoop(ctx context.Context, l *lane) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-l.ch:
			r.metrics.laneDepth.WithLabelValues(l.name).Set(float64(len(l.ch)))
			r.metrics.laneInFlight.WithLabelValues(l.name).Inc()
			r.runWithRetries(ctx, task)
			r.metrics.laneInFlight.WithLabelValues(l.name).Dec()
			if task.SerializationKey != "" {
				r.releaseKey(task.SerializationKey)
			}
			r.pending.Add(-1)
		}
	}
}

// releaseKey hands the next queued task for key to its lane, or marks
// the key free if nothing is waiting.
func (r *Runner) releaseKey(key string) {
	r.serialMu.Lock()
	queue := r.serialQueue[key]
	if len(queue) == 0 {
		r.serialBusy[key] = false
		r.serialMu.Unlock()
		return
	}
	next := queue[0]
	r.serialQueue[key] = queue[1:]
	r.serialMu.Unlock()

	l, ok := r.lanes[next.Lane]
	if !ok {
		slog.Error("taskrunner.serial_dispatch_unknown_lane", "lane", next.Lane, "key", key)
		r.releaseKey(key)
		return
	}
	// This is an internal, already-admitted continuation, not a
	// caller-facing submission, so it blocks on rate limiting and
	// capacity instead of failing fast.
	if l.limiter != nil {
		_ = l.limiter.Wait(r.runCtx)
	}
	select {
	case l.ch <- next:
		r.metrics.laneDepth.WithLabelValues(l.name).Set(float64(len(l.ch)))
	case <-r.runCtx.Done():
	}
}

func (r *Runner) runWithRetries(ctx context.Context, task *Task) {
	spec, ok := r.getHandler(task.HandlerName)
	if !ok {
		spanID := idgen.Span()
		r.deadLetter(ctx, task, spanID, fmt.Errorf("%w: %s", errUnknownHandler, task.HandlerName))
		return
	}
	maxAttempts := spec.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.cfg.MaxAttempts
	}

	for {
		task.Attempt++
		spanID := idgen.Span()
		start := time.Now()
		err := r.callHandler(ctx, spec.Handler, task)
		r.metrics.taskDuration.WithLabelValues(task.Lane, task.HandlerName).Observe(time.Since(start).Seconds())
		if err == nil {
			return
		}

		kind := errkind.ClassifyOf(err)
		if !kind.Retryable() || task.Attempt >= maxAttempts {
			r.deadLetter(ctx, task, spanID, err)
			return
		}

		r.metrics.tasksRetried.WithLabelValues(task.Lane, task.HandlerName).Inc()
		_, _ = r.events.Emit(ctx, protocol.EventTaskRetry, "taskrunner",
			eventlog.Actor{Kind: "system", ID: "taskrunner"},
			map[string]any{"handler": task.HandlerName, "attempt": task.Attempt, "error": err.Error()},
			task.TraceID, spanID, task.ParentSpanID, task.ThreadID)

		delay := backoffDelay(r.cfg, task.Attempt-1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// callHandler invokes h, converting a handler panic into a fatal error
// rather than taking down the worker goroutine permanently.
func (r *Runner) callHandler(ctx context.Context, h Handler, task *Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errkind.New(errkind.FatalInvariant, "handler_panic", fmt.Errorf("%v", rec))
		}
	}()
	return h(ctx, task)
}

func (r *Runner) deadLetter(ctx context.Context, task *Task, spanID string, err error) {
	r.metrics.tasksDead.WithLabelValues(task.Lane, task.HandlerName).Inc()
	_, _ = r.events.Emit(ctx, protocol.EventTaskDeadLetter, "taskrunner",
		eventlog.Actor{Kind: "system", ID: "taskrunner"},
		map[string]any{
			"handler":     task.HandlerName,
			"attempts":    task.Attempt,
			"error_chain": err.Error(),
			"kind":        string(errkind.ClassifyOf(err)),
		}, task.TraceID, spanID, task.ParentSpanID, task.ThreadID)
}

func backoffDelay(cfg config.TaskRunnerConfig, attempt int) time.Duration {
	d := cfg.BackoffBase << attempt
	if d > cfg.BackoffCap || d <= 0 {
		d = cfg.BackoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(d) + 1))
	return d/2 + jitter/2
}

// Shutdown stops accepting new work, then polls until every admitted task
// (in-flight, buffered, or waiting behind a serialization key) has reached
// a terminal state, up to the configured drain timeout. It then cancels
// the runner context so worker goroutines exit and waits for them to
// return.
func (r *Runner) Shutdown(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.stopPeriodicDispatch()

	drainCtx, cancelDrain := context.WithTimeout(ctx, r.cfg.DrainTimeout)
	defer cancelDrain()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

drain:
	for r.pending.Load() > 0 {
		select {
		case <-ticker.C:
		case <-drainCtx.Done():
			break drain
		}
	}
	drained := r.pending.Load() <= 0

	r.cancel()
	r.wg.Wait()

	if !drained {
		return fmt.Errorf("taskrunner: drain timeout exceeded, remaining tasks cancelled")
	}
	return nil
}
