package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentcore/internal/channels"
	"github.com/nextlevelbuilder/agentcore/internal/channels/webhook"
	"github.com/nextlevelbuilder/agentcore/internal/config"
	"github.com/nextlevelbuilder/agentcore/internal/eventlog"
	"github.com/nextlevelbuilder/agentcore/internal/ingest"
	"github.com/nextlevelbuilder/agentcore/internal/memory"
	"github.com/nextlevelbuilder/agentcore/internal/orchestrator"
	"github.com/nextlevelbuilder/agentcore/internal/policy"
	"github.com/nextlevelbuilder/agentcore/internal/providers"
	"github.com/nextlevelbuilder/agentcore/internal/scheduler"
	"github.com/nextlevelbuilder/agentcore/internal/selfupdate"
	"github.com/nextlevelbuilder/agentcore/internal/store"
	"github.com/nextlevelbuilder/agentcore/internal/store/memstore"
	"github.com/nextlevelbuilder/agentcore/internal/store/pg"
	"github.com/nextlevelbuilder/agentcore/internal/taskrunner"
	"github.com/nextlevelbuilder/agentcore/internal/tools"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the gateway: task runner, scheduler, and self-update pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

// app bundles everything wired by runServe so shutdown and the
// diagnostic subcommands can reach it.
type app struct {
	db       *sql.DB
	stores   *store.Stores
	runner   *taskrunner.Runner
	sched    *scheduler.Scheduler
	pipe     *selfupdate.Pipeline
	core     *ingest.Core
	orch     *orchestrator.Orchestrator
	primary  providers.Provider
	fallback providers.Provider
	outbox   *webhook.Adapter
	cfg      *config.Config
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.runner.Start(ctx)
	a.runner.StartPeriodicDispatch(ctx)
	slog.Info("agentcore.serve_started", "standalone", standalone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("agentcore.shutdown_started")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.TaskRunner.DrainTimeout+5*time.Second)
	defer shutdownCancel()
	if err := a.runner.Shutdown(shutdownCtx); err != nil {
		slog.Error("agentcore.shutdown_drain_failed", "error", err)
	}
	return nil
}

// buildApp wires every internal package together the way runGateway
// does in the teacher, just against this module's own components.
func buildApp(cfg *config.Config) (*app, error) {
	var stores *store.Stores
	var eventStore eventlog.Store
	var db *sql.DB

	if standalone || cfg.Database.PostgresDSN == "" {
		stores = memstore.Stores()
		eventStore = memstore.NewEventStore()
	} else {
		var err error
		db, err = pg.Open(cfg.Database.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("serve: connect to postgres: %w", err)
		}
		stores = pg.Stores(db)
		eventStore = pg.NewEventStore(db)
	}

	events := eventlog.NewWriter(eventStore, true)
	reg := prometheus.NewRegistry()

	runner := taskrunner.New(cfg.TaskRunner, events, reg)

	registry := tools.NewRegistry()
	execTool := tools.NewExecTool(cfg.Tools.ExecCwdAllowlist, cfg.Tools.ExecEnvAllowlist, cfg.Tools.ExecSandboxMode, cfg.Tools.ExecMemoryMB, cfg.Tools.ExecCPUSeconds, cfg.Tools.OutputByteCap)
	v := validator.New()
	registry.Register(tools.Declaration{
		Tool:        execTool,
		MinRiskTier: policy.RiskHigh,
		Timeout:     cfg.Tools.DefaultTimeout,
		SideEffect:  tools.SideEffectHostProcess,
		ValidateArgs: func(args map[string]any) error {
			return execTool.ValidateArgs(v, args)
		},
	})

	engine := policy.New(cfg.Policy.SafeTools)
	decider := policy.NewDecider(engine, events)
	runtime := tools.NewRuntime(registry, decider, events, cfg.Tools.MaxTimeout)

	primary := providers.NewAnthropicProvider(cfg.Providers.Primary.APIKey, cfg.Providers.Primary.BaseURL, cfg.Providers.Primary.Model)
	fallback := providers.NewLocalProvider(cfg.Providers.Fallback.BaseURL, cfg.Providers.Fallback.Model)
	router := providers.NewRouter(primary, fallback, events, cfg.Providers.HealthCheckTTL, cfg.Providers.QuotaCooldown)

	orch := orchestrator.New(stores, runtime, router, memory.NullMemory{}, events, cfg.Orchestrator, cfg.Providers)
	orch.EnqueueCompaction = func(ctx context.Context, threadID string) error {
		_, err := runner.Enqueue(ctx, taskrunner.LaneAgentDefault, "compact_thread", map[string]any{"thread_id": threadID}, "", "", threadID, "compact:"+threadID)
		return err
	}

	core := ingest.New(stores.Deliveries, stores.Threads, stores.Messages, events, runner, cfg.Gateway.MaxMessageChars)

	var outbox *webhook.Adapter
	runner.RegisterHandler(taskrunner.HandlerAgentStep, taskrunner.HandlerSpec{Handler: agentStepHandler(stores, orch)})
	runner.RegisterHandler(taskrunner.HandlerChannelSend, taskrunner.HandlerSpec{Handler: channelSendHandler(&outbox)})

	sched := scheduler.New(cfg.Scheduler, stores.Schedules, stores.Dispatches, runner, events)
	sched.RegisterWith(runner)

	git := selfupdate.NewGitRunner()
	testRunner := selfupdate.NewCommandTestRunner(cfg.SelfUpdate.TestCommand)
	readiness := selfupdate.NewHTTPReadinessChecker(cfg.SelfUpdate.ReadinessURL)
	restarter := selfupdate.NewCommandRestarter(cfg.SelfUpdate.RestartCommand)
	pipe := selfupdate.New(cfg.SelfUpdate, stores.Patches, stores.SystemState, events, git, testRunner, readiness, restarter)

	return &app{
		db: db, stores: stores, runner: runner, sched: sched, pipe: pipe, core: core, orch: orch,
		primary: primary, fallback: fallback, outbox: outbox, cfg: cfg,
	}, nil
}

// agentStepHandler resolves the default agent bundle and runs one
// orchestrator step for the task's thread.
func agentStepHandler(stores *store.Stores, orch *orchestrator.Orchestrator) taskrunner.Handler {
	return func(ctx context.Context, t *taskrunner.Task) error {
		agents, err := stores.Agents.List(ctx)
		if err != nil {
			return fmt.Errorf("agent_step: list agents: %w", err)
		}
		if len(agents) == 0 {
			return fmt.Errorf("agent_step: no agent bundle configured")
		}
		agentID := agents[0].ID

		messageID, _ := t.Payload["message_id"].(string)
		scheduleID, _ := t.Payload["schedule_id"].(string)

		_, err = orch.Step(ctx, orchestrator.StepInput{
			ThreadID:         t.ThreadID,
			AgentID:          agentID,
			TriggerMessageID: messageID,
			ScheduleID:       scheduleID,
			TraceID:          t.TraceID,
		})
		return err
	}
}

// channelSendHandler delivers a terminal assistant message through the
// configured outbound adapter. outbox is a pointer since it may be
// assigned after RegisterHandler during buildApp's wiring pass.
func channelSendHandler(outbox **webhook.Adapter) taskrunner.Handler {
	return func(ctx context.Context, t *taskrunner.Task) error {
		if *outbox == nil {
			slog.Warn("channel_send.no_adapter_configured", "thread_id", t.ThreadID)
			return nil
		}
		content, _ := t.Payload["content"].(string)
		messageID, _ := t.Payload["message_id"].(string)
		return (*outbox).Send(ctx, channels.OutboundMessage{
			ThreadID:  t.ThreadID,
			MessageID: messageID,
			Content:   content,
		})
	}
}
