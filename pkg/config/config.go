// Package config loads and validates the process configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	LLM           LLMConfig                 `yaml:"llm"`
	Mongo         MongoConfig               `yaml:"mongo"`
	Memory        MemoryConfig              `yaml:"memory"`
	Agent         AgentConfig               `yaml:"agent"`
	Server        ServerConfig              `yaml:"server"`
	Logging       LoggingConfig             `yaml:"logging"`
	Observability ObservabilityConfig       `yaml:"observability"`
	Rules         map[string]map[string]any `yaml:"rules"`
}

// LLMConfig configures the reasoning capability provider.
type LLMConfig struct {
	// Provider selects the backend: "openai" or "anthropic".
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Host        string  `yaml:"host"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// Timeout is the HTTP timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// SetDefaults fills unset LLM fields.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		switch c.Provider {
		case "anthropic":
			c.Model = "claude-sonnet-4-20250514"
		default:
			c.Model = "gpt-4o"
		}
	}
	if c.Host == "" {
		switch c.Provider {
		case "anthropic":
			c.Host = "https://api.anthropic.com"
		default:
			c.Host = "https://api.openai.com/v1"
		}
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("llm api_key is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2")
	}
	return nil
}

// MongoConfig configures the document store connection.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// SetDefaults fills unset Mongo fields.
func (c *MongoConfig) SetDefaults() {
	if c.URI == "" {
		c.URI = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "datasage"
	}
}

// MemoryConfig selects the conversation memory backend, chosen once at
// process start.
type MemoryConfig struct {
	// Backend is "mongo" (durable) or "memory" (transient).
	Backend string `yaml:"backend"`
	// SessionTTLSeconds is the per-session time-to-live of the durable
	// backend. Ignored by the transient backend.
	SessionTTLSeconds int `yaml:"session_ttl_seconds"`
}

// SetDefaults fills unset memory fields.
func (c *MemoryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.SessionTTLSeconds == 0 {
		c.SessionTTLSeconds = 24 * 60 * 60
	}
}

// Validate checks the memory configuration.
func (c *MemoryConfig) Validate() error {
	switch c.Backend {
	case "mongo", "memory":
		return nil
	default:
		return fmt.Errorf("unsupported memory backend: %s", c.Backend)
	}
}

// AgentConfig bounds the decide/act loop.
type AgentConfig struct {
	// MaxSteps caps the number of Deciding->Acting round trips per turn.
	MaxSteps int `yaml:"max_steps"`
}

// SetDefaults fills unset agent fields.
func (c *AgentConfig) SetDefaults() {
	if c.MaxSteps == 0 {
		c.MaxSteps = 20
	}
}

// ServerConfig configures the thin HTTP boundary.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SetDefaults fills unset server fields.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// SetDefaults fills unset logging fields.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// ObservabilityConfig toggles tracing and metrics; both are off by default.
type ObservabilityConfig struct {
	Tracing     bool   `yaml:"tracing"`
	Metrics     bool   `yaml:"metrics"`
	ServiceName string `yaml:"service_name"`
}

// SetDefaults fills unset observability fields.
func (c *ObservabilityConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "datasage"
	}
}

// SetDefaults fills every unset section.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Mongo.SetDefaults()
	c.Memory.SetDefaults()
	c.Agent.SetDefaults()
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Observability.SetDefaults()
	if c.Rules == nil {
		c.Rules = map[string]map[string]any{}
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Memory.Validate(); err != nil {
		return err
	}
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent max_steps must be at least 1")
	}
	return nil
}

// Load reads, env-expands, defaults and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	expanded := ExpandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns a configuration built purely from defaults and the
// environment, for running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.LLM.APIKey = firstEnv("OPENAI_API_KEY", "ANTHROPIC_API_KEY")
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("ANTHROPIC_API_KEY") != "" {
		cfg.LLM.Provider = "anthropic"
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
	cfg.SetDefaults()
	return cfg
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
