package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, 300.0, cfg.Workflow.AutoApproveLimit)
	assert.Equal(t, 0.05, cfg.Workflow.DiscountRate)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
model:
  provider: anthropic
  name: claude-3-5-sonnet-latest
agent:
  name: payment_agent
  description: Executes transfers
workflow:
  auto_approve_limit: 500
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "payment_agent", cfg.Agent.Name)
	assert.Equal(t, 500.0, cfg.Workflow.AutoApproveLimit)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.05, cfg.Workflow.DiscountRate)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CARBONMESH_ADDR", ":7070")
	t.Setenv("CARBONMESH_REDIS_ADDR", "localhost:6379")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "localhost:6379", cfg.Session.RedisAddr)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
model:
  provider: llamacpp
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "model.provider")
}

func TestLoadRejectsBadDiscountRate(t *testing.T) {
	path := writeConfig(t, `
workflow:
  discount_rate: 1.5
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "discount_rate")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestAgentURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:8080", cfg.AgentURL())

	cfg.Agent.URL = "http://payment.internal:8081"
	assert.Equal(t, "http://payment.internal:8081", cfg.AgentURL())
}
