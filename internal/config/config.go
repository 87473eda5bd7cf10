// Package config loads and validates agentcore's runtime configuration,
// following the existing json5-file-plus-env-overlay pattern: Default()
// builds sane defaults, Load() reads a file over them, then
// applyEnvOverrides() layers AGENTCORE_* environment variables on top.
// Secrets (DSNs, API keys) are only ever read from the environment.
package config

import "time"

// Config is the root configuration for the agentcore gateway.
type Config struct {
	Database   DatabaseConfig   `json:"database,omitempty"`
	Providers  ProvidersConfig  `json:"providers"`
	Policy     PolicyConfig     `json:"policy"`
	Tools      ToolsConfig      `json:"tools"`
	TaskRunner TaskRunnerConfig `json:"task_runner"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	SelfUpdate SelfUpdateConfig `json:"self_update"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty"`
	Gateway    GatewayConfig    `json:"gateway"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
}

// DatabaseConfig configures Postgres. DSN is never persisted to disk.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"` // from env AGENTCORE_POSTGRES_DSN only
	RedisAddr   string `json:"-"` // from env AGENTCORE_REDIS_ADDR only (optional cache tier)
}

// ProvidersConfig configures the primary/fallback LLM provider pair.
type ProvidersConfig struct {
	Primary  ProviderSpec `json:"primary"`
	Fallback ProviderSpec `json:"fallback"`
	// QuotaCooldown is how long the router skips a provider after a
	// quota-exhaustion response carrying no explicit retry-after hint.
	QuotaCooldown time.Duration `json:"quota_cooldown,omitempty"`
	HealthCheckTTL time.Duration `json:"health_check_ttl,omitempty"`
}

type ProviderSpec struct {
	Name    string `json:"name"` // "anthropic", "local"
	APIKey  string `json:"-"`    // from env only
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
	// TokenBudget is the prompt-assembly budget in tokens for this provider
	// (large for remote, tight for local fallback).
	TokenBudget int `json:"token_budget"`
}

// PolicyConfig configures the deny-by-default policy engine.
type PolicyConfig struct {
	SafeTools []string `json:"safe_tools"`
}

// ToolsConfig configures tool registry defaults and host-exec sandboxing.
type ToolsConfig struct {
	DefaultTimeout   time.Duration `json:"default_timeout,omitempty"`
	MaxTimeout       time.Duration `json:"max_timeout,omitempty"`
	OutputByteCap    int           `json:"output_byte_cap,omitempty"`
	ExecSandboxMode  string        `json:"exec_sandbox_mode,omitempty"` // "none", "limited", "strict"
	ExecEnvAllowlist []string      `json:"exec_env_allowlist,omitempty"`
	ExecCwdAllowlist []string      `json:"exec_cwd_allowlist,omitempty"`
	ExecMemoryMB     int           `json:"exec_memory_mb,omitempty"`
	ExecCPUSeconds   int           `json:"exec_cpu_seconds,omitempty"`
}

// TaskRunnerConfig configures lanes, retries and periodic dispatch.
type TaskRunnerConfig struct {
	Lanes        map[string]LaneConfig `json:"lanes"`
	MaxAttempts  int                   `json:"max_attempts,omitempty"`
	BackoffBase  time.Duration         `json:"backoff_base,omitempty"`
	BackoffCap   time.Duration         `json:"backoff_cap,omitempty"`
	DrainTimeout time.Duration         `json:"drain_timeout,omitempty"`
}

type LaneConfig struct {
	Capacity int `json:"capacity"` // bound on enqueued-but-not-yet-started tasks
	Workers  int `json:"workers"`  // in-flight concurrency cap (hard upper bound)
	// RatePerSecond token-bucket refill rate for Enqueue backpressure;
	// burst equals Capacity. Zero disables rate limiting for the lane.
	RatePerSecond float64 `json:"rate_per_second,omitempty"`
}

// SchedulerConfig configures the cron scheduler's tick cadence and
// catch-up limits.
type SchedulerConfig struct {
	TickInterval     time.Duration `json:"tick_interval,omitempty"`
	CatchupWindow    time.Duration `json:"catchup_window,omitempty"`
	PerScheduleCap   int           `json:"per_schedule_cap,omitempty"`
	GlobalCatchupCap int           `json:"global_catchup_cap,omitempty"`
}

// SelfUpdateConfig configures the self-update pipeline's guardrails.
type SelfUpdateConfig struct {
	RepoRoot             string        `json:"repo_root"`
	PathAllowlist        []string      `json:"path_allowlist"`
	TestGateMode         string        `json:"test_gate_mode"` // "warn" or "enforce"
	Profile              string        `json:"profile"`        // "development" or "production"
	MaxFilesPerPatch     int           `json:"max_files_per_patch,omitempty"`
	MaxRiskScore         float64       `json:"max_risk_score,omitempty"`
	MaxPatchAttemptsPerDay int         `json:"max_patch_attempts_per_day,omitempty"`
	MaxPRsPerDay         int           `json:"max_prs_per_day,omitempty"`
	ReadinessCheckCount  int           `json:"readiness_check_count,omitempty"` // K consecutive checks
	ReadinessWindow      time.Duration `json:"readiness_window,omitempty"`
	RollbackLockdownWindow time.Duration `json:"rollback_lockdown_window,omitempty"`
	RollbackLockdownCount  int           `json:"rollback_lockdown_count,omitempty"`
	RestartCommand       []string      `json:"restart_command,omitempty"`
	TestCommand          []string      `json:"test_command,omitempty"`
	ReadinessURL         string        `json:"readiness_url,omitempty"`
	StateDir             string        `json:"state_dir"`
	ArtifactSchemaVersion string       `json:"artifact_schema_version,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

// GatewayConfig configures ingestion-level limits.
type GatewayConfig struct {
	MaxMessageChars int `json:"max_message_chars,omitempty"`
	RateLimitRPM    int `json:"rate_limit_rpm,omitempty"`
}

// OrchestratorConfig configures prompt assembly and step bounds.
type OrchestratorConfig struct {
	RecentTurns          int     `json:"recent_turns,omitempty"`
	RetrievalTopK        int     `json:"retrieval_top_k,omitempty"`
	SemanticWeight       float64 `json:"semantic_weight,omitempty"`
	RecencyWeight        float64 `json:"recency_weight,omitempty"`
	CompactionEveryN     int     `json:"compaction_every_n,omitempty"`
	StepWallClockTimeout time.Duration `json:"step_wall_clock_timeout,omitempty"`
}

// Default returns a Config with sensible production-safe defaults for
// every component, suitable for local development without an env file.
func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Primary:        ProviderSpec{Name: "anthropic", Model: "claude-sonnet-4-5-20250929", TokenBudget: 150_000},
			Fallback:       ProviderSpec{Name: "local", Model: "local-fallback", TokenBudget: 8_000},
			QuotaCooldown:  10 * time.Minute,
			HealthCheckTTL: 30 * time.Second,
		},
		Policy: PolicyConfig{
			SafeTools: []string{"status_query", "log_search", "unlock_command"},
		},
		Tools: ToolsConfig{
			DefaultTimeout:  30 * time.Second,
			MaxTimeout:      5 * time.Minute,
			OutputByteCap:   64 * 1024,
			ExecSandboxMode: "limited",
			ExecMemoryMB:    512,
			ExecCPUSeconds:  30,
		},
		TaskRunner: TaskRunnerConfig{
			Lanes: map[string]LaneConfig{
				"agent_priority": {Capacity: 256, Workers: 8, RatePerSecond: 50},
				"agent_default":  {Capacity: 1024, Workers: 16, RatePerSecond: 100},
				"tools_io":       {Capacity: 512, Workers: 16, RatePerSecond: 100},
				"local_llm":      {Capacity: 128, Workers: 4, RatePerSecond: 20},
			},
			MaxAttempts:  3,
			BackoffBase:  2 * time.Second,
			BackoffCap:   32 * time.Second,
			DrainTimeout: 30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			TickInterval:     30 * time.Second,
			CatchupWindow:    24 * time.Hour,
			PerScheduleCap:   10,
			GlobalCatchupCap: 100,
		},
		SelfUpdate: SelfUpdateConfig{
			RepoRoot:               ".",
			TestGateMode:           "enforce",
			Profile:                "development",
			MaxFilesPerPatch:       20,
			MaxRiskScore:           0.7,
			MaxPatchAttemptsPerDay: 10,
			MaxPRsPerDay:           5,
			ReadinessCheckCount:    3,
			ReadinessWindow:        2 * time.Minute,
			RollbackLockdownWindow: 1 * time.Hour,
			RollbackLockdownCount:  2,
			TestCommand:            []string{"go", "build", "./..."},
			ReadinessURL:           "http://127.0.0.1:8080/healthz",
			StateDir:               ".agentcore/selfupdate",
			ArtifactSchemaVersion:  "1",
		},
		Gateway: GatewayConfig{
			MaxMessageChars: 32_000,
			RateLimitRPM:    20,
		},
		Orchestrator: OrchestratorConfig{
			RecentTurns:          12,
			RetrievalTopK:        8,
			SemanticWeight:       0.7,
			RecencyWeight:        0.3,
			CompactionEveryN:     40,
			StepWallClockTimeout: 3 * time.Minute,
		},
	}
}
