// Package config loads towow.yaml and environment-based settings into a
// validated Config.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported LLM provider names, mirroring the any-llm backends.
var supportedProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
	"ollama":    true,
	"deepseek":  true,
	"mistral":   true,
	"groq":      true,
}

// LLMConfig selects the platform model that powers the coordinator and
// text-only skills.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the key. The key
	// itself never lives in YAML.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// APIKey resolves the provider API key from the environment.
func (c *LLMConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// EmbeddingConfig selects the encoder for resonance detection. With an
// empty APIKeyEnv (or a missing key) the deterministic hash encoder is
// used instead of the OpenAI one.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`
}

func (c *EmbeddingConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Duration wraps time.Duration so YAML can carry "30s" style strings.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// NegotiationConfig tunes the engine.
type NegotiationConfig struct {
	KStar               int      `yaml:"k_star"`
	MaxCenterRounds     int      `yaml:"max_center_rounds"`
	OfferTimeout        Duration `yaml:"offer_timeout"`
	ConfirmationTimeout Duration `yaml:"confirmation_timeout"`
	AwaitConfirmation   bool     `yaml:"await_confirmation"`
}

// Config is the complete application configuration.
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Negotiation NegotiationConfig `yaml:"negotiation"`

	// DatabaseURL enables the pgvector-backed agent store when set.
	// Overridable via DATABASE_URL.
	DatabaseURL string `yaml:"database_url,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns the configuration used when towow.yaml is absent.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
		},
		Negotiation: NegotiationConfig{
			KStar:               5,
			MaxCenterRounds:     2,
			OfferTimeout:        Duration(30 * time.Second),
			ConfirmationTimeout: Duration(300 * time.Second),
		},
		LogLevel: "info",
	}
}

// Load reads path (towow.yaml), layers it over the defaults, applies
// environment overrides and validates the result. A missing file is not
// an error; the defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Info("no config file found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(ExpandEnv(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		slog.Info("configuration loaded", "path", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment override the most operationally
// relevant knobs without editing YAML.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TOWOW_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("TOWOW_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("TOWOW_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("TOWOW_K_STAR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Negotiation.KStar = n
		}
	}
	if v := os.Getenv("TOWOW_MAX_CENTER_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Negotiation.MaxCenterRounds = n
		}
	}
	if v := os.Getenv("TOWOW_OFFER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Negotiation.OfferTimeout = Duration(d)
		}
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if !supportedProviders[c.LLM.Provider] {
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Negotiation.KStar < 0 {
		return fmt.Errorf("k_star must be >= 0, got %d", c.Negotiation.KStar)
	}
	if c.Negotiation.MaxCenterRounds < 1 {
		return fmt.Errorf("max_center_rounds must be >= 1, got %d", c.Negotiation.MaxCenterRounds)
	}
	if c.Negotiation.OfferTimeout <= 0 {
		return fmt.Errorf("offer_timeout must be positive, got %s", c.Negotiation.OfferTimeout)
	}
	if c.Negotiation.ConfirmationTimeout <= 0 {
		return fmt.Errorf("confirmation_timeout must be positive, got %s", c.Negotiation.ConfirmationTimeout)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
