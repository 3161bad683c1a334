package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: anthropic
  api_key: sk-test
  temperature: 0.2
mongo:
  uri: mongodb://db:27017
  database: shop
memory:
  backend: mongo
  session_ttl_seconds: 3600
agent:
  max_steps: 5
rules:
  orders:
    deleted: false
  reviews:
    moderated: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.Model, "provider-specific default")
	assert.Equal(t, "https://api.anthropic.com", cfg.LLM.Host)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "shop", cfg.Mongo.Database)
	assert.Equal(t, "mongo", cfg.Memory.Backend)
	assert.Equal(t, 3600, cfg.Memory.SessionTTLSeconds)
	assert.Equal(t, 5, cfg.Agent.MaxSteps)
	assert.Equal(t, map[string]any{"deleted": false}, cfg.Rules["orders"])
	assert.Equal(t, map[string]any{"moderated": true}, cfg.Rules["reviews"])
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_key: sk-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 60, cfg.LLM.Timeout)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "datasage", cfg.Mongo.Database)
	assert.Equal(t, "memory", cfg.Memory.Backend)
	assert.Equal(t, 86400, cfg.Memory.SessionTTLSeconds)
	assert.Equal(t, 20, cfg.Agent.MaxSteps)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotNil(t, cfg.Rules)
	assert.Empty(t, cfg.Rules)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-from-env")
	os.Unsetenv("TEST_MONGO_URI")

	path := writeConfig(t, `
llm:
  api_key: ${TEST_API_KEY}
mongo:
  uri: ${TEST_MONGO_URI:-mongodb://fallback:27017}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "mongodb://fallback:27017", cfg.Mongo.URI)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing api key", "llm:\n  provider: openai\n", "api_key is required"},
		{"bad provider", "llm:\n  provider: cohere\n  api_key: k\n", "unsupported llm provider"},
		{"bad memory backend", "llm:\n  api_key: k\nmemory:\n  backend: redis\n", "unsupported memory backend"},
		{"negative max steps", "llm:\n  api_key: k\nagent:\n  max_steps: -1\n", "max_steps"},
		{"temperature out of range", "llm:\n  api_key: k\n  temperature: 3\n", "temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DATASAGE_TEST_SET", "value")
	os.Unsetenv("DATASAGE_TEST_UNSET")

	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"${DATASAGE_TEST_SET}", "value"},
		{"${DATASAGE_TEST_UNSET}", ""},
		{"${DATASAGE_TEST_UNSET:-fallback}", "fallback"},
		{"${DATASAGE_TEST_SET:-fallback}", "value"},
		{"a ${DATASAGE_TEST_SET} b", "a value b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnvVars(tt.in), tt.in)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("MONGODB_URI", "mongodb://env:27017")

	cfg := Default()
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Equal(t, "mongodb://env:27017", cfg.Mongo.URI)
}
