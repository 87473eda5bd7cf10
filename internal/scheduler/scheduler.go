// Package scheduler implements the periodic cron tick: computing due
// instants per schedule since its last dispatch, bounded by a catch-up
// window and per-schedule/global caps, and dispatching each instant
// exactly once through an idempotent (schedule_id, due_at) insert. A
// failing schedule is isolated so one bad cron expression never stalls
// the rest of a tick.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/agentcore/internal/config"
	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/idgen"
	"github.com/nextlevelbuilder/agentcore/pkg/protocol"
	"github.com/nextlevelbuilder/agentcore/internal/store"
	"github.com/nextlevelbuilder/agentcore/internal/taskrunner"
)

// Scheduler loads enabled schedules on every tick and dispatches the
// instants that have come due since each one's last dispatch.
type Scheduler struct {
	cfg        config.SchedulerConfig
	schedules  store.ScheduleStore
	dispatches store.DispatchStore
	runner     *taskrunner.Runner
	events     *eventlog.Writer
}

// New builds a Scheduler, filling zero-valued config fields with the
// defaults the cron tick needs to make progress.
func New(cfg config.SchedulerConfig, schedules store.ScheduleStore, dispatches store.DispatchStore, runner *taskrunner.Runner, events *eventlog.Writer) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.CatchupWindow <= 0 {
		cfg.CatchupWindow = 24 * time.Hour
	}
	if cfg.PerScheduleCap <= 0 {
		cfg.PerScheduleCap = 5
	}
	if cfg.GlobalCatchupCap <= 0 {
		cfg.GlobalCatchupCap = 50
	}
	return &Scheduler{cfg: cfg, schedules: schedules, dispatches: dispatches, runner: runner, events: events}
}

// RegisterWith wires the tick as a handler and a periodic dispatch entry
// on runner. Call before runner.Start and runner.StartPeriodicDispatch.
func (s *Scheduler) RegisterWith(runner *taskrunner.Runner) {
	runner.RegisterHandler(taskrunner.HandlerSchedulerTick, taskrunner.HandlerSpec{Handler: s.handleTick})
	runner.RegisterPeriodic(taskrunner.PeriodicSpec{
		HandlerName: taskrunner.HandlerSchedulerTick,
		Lane:        taskrunner.LaneAgentDefault,
		Interval:    s.cfg.TickInterval,
	})
}

func (s *Scheduler) handleTick(ctx context.Context, _ *taskrunner.Task) error {
	s.Tick(ctx)
	return nil
}

// Tick loads all enabled schedules and, for each, dispatches every due
// instant since its last dispatch (clamped to the catch-up window),
// spending from a shared global cap as it goes. One schedule's error
// is reported via schedule.error and never aborts the rest of the tick.
func (s *Scheduler) Tick(ctx context.Context) {
	schedules, err := s.schedules.ListEnabled(ctx)
	if err != nil {
		slog.Error("scheduler.list_enabled_failed", "error", err)
		return
	}

	budget := s.cfg.GlobalCatchupCap
	now := time.Now().UTC()

	for _, sc := range schedules {
		if budget <= 0 {
			break
		}
		budget -= s.runSchedule(ctx, sc, now, min(s.cfg.PerScheduleCap, budget))
	}
}

func (s *Scheduler) runSchedule(ctx context.Context, sc store.Schedule, now time.Time, limit int) int {
	traceID := idgen.Trace()

	if sc.ThreadID == "" {
		s.emitError(ctx, traceID, sc.ID, "schedule has no thread_id")
		return 0
	}
	if limit <= 0 {
		return 0
	}

	since := sc.LastDispatched
	floor := now.Add(-s.cfg.CatchupWindow)
	if since.Before(floor) {
		since = floor
	}

	instants, err := dueInstants(sc.CronExpr, since, now, limit)
	if err != nil {
		s.emitError(ctx, traceID, sc.ID, err.Error())
		return 0
	}

	dispatched := 0
	for _, instant := range instants {
		if s.dispatchOne(ctx, sc, instant) {
			dispatched++
		}
	}
	if dispatched > 0 {
		last := instants[len(instants)-1]
		if err := s.schedules.UpdateLastDispatched(ctx, sc.ID, last); err != nil {
			slog.Error("scheduler.update_last_dispatched_failed", "schedule_id", sc.ID, "error", err)
		}
	}
	return dispatched
}

// dispatchOne claims due instant for sc and, on a successful claim,
// enqueues the agent_step task for its thread. It returns true whenever
// the instant is considered handled, whether by this call or a prior
// one — a false return means the claim attempt itself failed and the
// instant should be retried on the next tick.
func (s *Scheduler) dispatchOne(ctx context.Context, sc store.Schedule, instant time.Time) bool {
	traceID := idgen.Trace()

	inserted, err := s.dispatches.Insert(ctx, store.ScheduleDispatch{ScheduleID: sc.ID, DueAt: instant})
	if err != nil {
		s.emitError(ctx, traceID, sc.ID, err.Error())
		return false
	}
	if !inserted {
		return true
	}

	spanID := idgen.Span()
	_, _ = s.events.Emit(ctx, protocol.EventScheduleTrigger, "scheduler",
		eventlog.Actor{Kind: "system", ID: "scheduler"},
		map[string]any{"schedule_id": sc.ID, "due_at": instant.Format(time.RFC3339)},
		traceID, spanID, "", sc.ThreadID)

	payload := map[string]any{
		"schedule_id": sc.ID,
		"due_at":      instant.Format(time.RFC3339),
		"source":      "schedule",
	}
	if _, err := s.runner.Enqueue(ctx, taskrunner.LaneAgentPriority, taskrunner.HandlerAgentStep, payload, traceID, spanID, sc.ThreadID, sc.ThreadID); err != nil {
		slog.Error("scheduler.enqueue_agent_step_failed", "schedule_id", sc.ID, "error", err)
	}
	return true
}

func (s *Scheduler) emitError(ctx context.Context, traceID, scheduleID, reason string) {
	_, _ = s.events.Emit(ctx, protocol.EventScheduleError, "scheduler",
		eventlog.Actor{Kind: "system", ID: "scheduler"},
		map[string]any{"schedule_id": scheduleID, "reason": reason}, traceID, idgen.Span(), "", "")
}
