package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json5"))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Providers.Primary.Name)
	assert.Equal(t, Default().Gateway.MaxMessageChars, cfg.Gateway.MaxMessageChars)
}

func TestLoadParsesJSON5File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.json5")
	writeFile(t, path, `{
		// trailing commas and comments are valid json5
		providers: {
			primary: { name: "anthropic", model: "claude-override", token_budget: 1000 },
		},
		gateway: { max_message_chars: 4096 },
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-override", cfg.Providers.Primary.Model)
	assert.Equal(t, 1000, cfg.Providers.Primary.TokenBudget)
	assert.Equal(t, 4096, cfg.Gateway.MaxMessageChars)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.json5")
	writeFile(t, path, `{ not valid json5 `)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.json5")
	writeFile(t, path, `{ self_update: { profile: "development" } }`)

	t.Setenv("AGENTCORE_POSTGRES_DSN", "postgres://env-value")
	t.Setenv("AGENTCORE_SELFUPDATE_PROFILE", "production")
	t.Setenv("AGENTCORE_POLICY_SAFE_TOOLS", "search,read_file")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-value", cfg.Database.PostgresDSN)
	assert.Equal(t, "production", cfg.SelfUpdate.Profile)
	assert.Equal(t, []string{"search", "read_file"}, cfg.Policy.SafeTools)
}

func TestEnvOverrideBooleanParsing(t *testing.T) {
	t.Setenv("AGENTCORE_TELEMETRY_ENABLED", "1")
	t.Setenv("AGENTCORE_TELEMETRY_INSECURE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	require.NoError(t, err)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.True(t, cfg.Telemetry.Insecure)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
