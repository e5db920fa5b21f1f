// Package config loads service configuration from a YAML file and the
// environment. Environment variables take the EVERMIND_ prefix and override
// file values (EVERMIND_LLM_PROVIDER, EVERMIND_REDIS_ADDR, ...).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	LLM          LLMConfig          `mapstructure:"llm"`
	Memory       MemoryConfig       `mapstructure:"memory"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // "openai" or "anthropic"
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// MemoryConfig configures the long-term memory store.
type MemoryConfig struct {
	WeaviateHost   string `mapstructure:"weaviate_host"`
	WeaviateScheme string `mapstructure:"weaviate_scheme"`
	WeaviateAPIKey string `mapstructure:"weaviate_api_key"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TopK           int    `mapstructure:"top_k"`
}

// RedisConfig configures the conversation history buffer.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OrchestratorConfig bounds turn execution.
type OrchestratorConfig struct {
	TokenBudget      int `mapstructure:"token_budget"`
	MaxRetries       int `mapstructure:"max_retries"`
	AnalysisInterval int `mapstructure:"analysis_interval"`
	HistoryLimit     int `mapstructure:"history_limit"`
}

// Load reads configuration from the given file (optional) and the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("memory.weaviate_scheme", "http")
	v.SetDefault("memory.top_k", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("orchestrator.token_budget", 8192)
	v.SetDefault("orchestrator.max_retries", 3)
	v.SetDefault("orchestrator.analysis_interval", 10)
	v.SetDefault("orchestrator.history_limit", 20)

	v.SetEnvPrefix("EVERMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Orchestrator.TokenBudget < 0 {
		return fmt.Errorf("token budget must not be negative")
	}
	if c.Orchestrator.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	return nil
}
