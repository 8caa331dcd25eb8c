// Package config loads runtime settings for the agent, memory and telemetry
// layers: defaults, then an optional TOML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration.
type Config struct {
	OpenAI    OpenAIConfig    `toml:"openai"`
	Agent     AgentConfig     `toml:"agent"`
	Memory    MemoryConfig    `toml:"memory"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// OpenAIConfig configures the hosted completion and embedding endpoints.
type OpenAIConfig struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	Model           string `toml:"model"`
	EmbeddingModel  string `toml:"embedding_model"`
	ReasoningEffort string `toml:"reasoning_effort"`
}

// AgentConfig holds run-loop guards.
type AgentConfig struct {
	MaxTurns int           `toml:"max_turns"`
	Deadline time.Duration `toml:"deadline"`
	Retries  int           `toml:"retries"`
}

// MemoryConfig selects the memory store.
type MemoryConfig struct {
	Backend   string  `toml:"backend"`
	Path      string  `toml:"path"`
	Threshold float64 `toml:"threshold"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Disable     bool   `toml:"disable"`
	ServiceName string `toml:"service_name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			Model:          "gpt-4.1",
			EmbeddingModel: "text-embedding-3-small",
		},
		Agent: AgentConfig{
			MaxTurns: 10,
			Retries:  3,
		},
		Memory: MemoryConfig{
			Backend:   "jsonl",
			Path:      "memory_store.jsonl",
			Threshold: 0.5,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "miniagent",
		},
	}
}

// Load builds a Config from defaults, the TOML file at path and the
// environment. An empty path or a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as TOML. The file may contain an API key, so it is created 0600.
func Save(cfg *Config, path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("openai.model", c.OpenAI.Model)
	v.RequireNonEmpty("openai.embedding_model", c.OpenAI.EmbeddingModel)
	if c.OpenAI.ReasoningEffort != "" {
		v.ValidateOneOf("openai.reasoning_effort", c.OpenAI.ReasoningEffort, "minimal", "low", "medium", "high")
	}
	v.RequirePositive("agent.max_turns", c.Agent.MaxTurns)
	v.ValidateRange("agent.retries", c.Agent.Retries, 0, 10)
	v.ValidateNonNegativeDuration("agent.deadline", c.Agent.Deadline)
	v.ValidateOneOf("memory.backend", c.Memory.Backend, "jsonl", "memory", "redis", "mongo", "postgres")
	v.ValidateFloatRange("memory.threshold", c.Memory.Threshold, -1, 1)
	v.RequireNonEmpty("telemetry.service_name", c.Telemetry.ServiceName)
	return v.Error()
}

func (c *Config) applyEnv() error {
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAI.Model, "MINIAGENT_MODEL")
	setString(&c.OpenAI.EmbeddingModel, "MINIAGENT_EMBEDDING_MODEL")
	setString(&c.OpenAI.ReasoningEffort, "MINIAGENT_REASONING_EFFORT")
	setString(&c.Memory.Backend, "MINIAGENT_MEMORY_BACKEND")
	setString(&c.Memory.Path, "MINIAGENT_MEMORY_PATH")
	setString(&c.Telemetry.ServiceName, "OTEL_SERVICE_NAME")

	var errs []error
	errs = append(errs,
		setInt(&c.Agent.MaxTurns, "MINIAGENT_MAX_TURNS"),
		setInt(&c.Agent.Retries, "MINIAGENT_RETRIES"),
		setDuration(&c.Agent.Deadline, "MINIAGENT_DEADLINE"),
		setFloat(&c.Memory.Threshold, "MINIAGENT_MEMORY_THRESHOLD"),
		setBool(&c.Telemetry.Disable, "OTEL_SDK_DISABLED"),
	)
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
