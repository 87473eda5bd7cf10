package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error — defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays AGENTCORE_* env vars onto the config.
// Env vars take precedence over file values, and secrets are read only
// from the environment.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("AGENTCORE_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("AGENTCORE_REDIS_ADDR", &c.Database.RedisAddr)
	envStr("AGENTCORE_ANTHROPIC_API_KEY", &c.Providers.Primary.APIKey)
	envStr("AGENTCORE_ANTHROPIC_BASE_URL", &c.Providers.Primary.BaseURL)
	envStr("AGENTCORE_FALLBACK_API_KEY", &c.Providers.Fallback.APIKey)
	envStr("AGENTCORE_FALLBACK_BASE_URL", &c.Providers.Fallback.BaseURL)

	envStr("AGENTCORE_SELFUPDATE_REPO_ROOT", &c.SelfUpdate.RepoRoot)
	envStr("AGENTCORE_SELFUPDATE_PROFILE", &c.SelfUpdate.Profile)
	envStr("AGENTCORE_SELFUPDATE_TEST_GATE", &c.SelfUpdate.TestGateMode)

	envStr("AGENTCORE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("AGENTCORE_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("AGENTCORE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("AGENTCORE_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}

	if v := os.Getenv("AGENTCORE_GATEWAY_MAX_MESSAGE_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Gateway.MaxMessageChars = n
		}
	}

	if v := os.Getenv("AGENTCORE_POLICY_SAFE_TOOLS"); v != "" {
		c.Policy.SafeTools = strings.Split(v, ",")
	}
}
