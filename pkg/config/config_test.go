package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "towow.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Negotiation.KStar)
	assert.Equal(t, 2, cfg.Negotiation.MaxCenterRounds)
	assert.Equal(t, 30*time.Second, cfg.Negotiation.OfferTimeout.Std())
	assert.Equal(t, 300*time.Second, cfg.Negotiation.ConfirmationTimeout.Std())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "towow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: anthropic
  model: claude-sonnet-4-5
  api_key_env: ANTHROPIC_API_KEY
negotiation:
  k_star: 3
  max_center_rounds: 4
  offer_timeout: 45s
  confirmation_timeout: 2m
  await_confirmation: true
log_level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Negotiation.KStar)
	assert.Equal(t, 4, cfg.Negotiation.MaxCenterRounds)
	assert.Equal(t, 45*time.Second, cfg.Negotiation.OfferTimeout.Std())
	assert.Equal(t, 2*time.Minute, cfg.Negotiation.ConfirmationTimeout.Std())
	assert.True(t, cfg.Negotiation.AwaitConfirmation)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Fields the file does not mention keep their defaults.
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TOWOW_LLM_PROVIDER", "ollama")
	t.Setenv("TOWOW_LLM_MODEL", "llama3.2")
	t.Setenv("TOWOW_K_STAR", "7")
	t.Setenv("TOWOW_OFFER_TIMEOUT", "10s")
	t.Setenv("DATABASE_URL", "postgres://localhost/towow")

	cfg, err := Load(filepath.Join(t.TempDir(), "towow.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, 7, cfg.Negotiation.KStar)
	assert.Equal(t, 10*time.Second, cfg.Negotiation.OfferTimeout.Std())
	assert.Equal(t, "postgres://localhost/towow", cfg.DatabaseURL)
}

func TestLoad_TemplateExpansion(t *testing.T) {
	t.Setenv("TOWOW_TEST_DB", "postgres://db.internal/towow")

	path := filepath.Join(t.TempDir(), "towow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"database_url: \"{{.TOWOW_TEST_DB}}\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://db.internal/towow", cfg.DatabaseURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad provider", func(c *Config) { c.LLM.Provider = "watson" }, "unsupported llm provider"},
		{"empty model", func(c *Config) { c.LLM.Model = "" }, "llm model is required"},
		{"negative k_star", func(c *Config) { c.Negotiation.KStar = -1 }, "k_star"},
		{"zero rounds", func(c *Config) { c.Negotiation.MaxCenterRounds = 0 }, "max_center_rounds"},
		{"zero offer timeout", func(c *Config) { c.Negotiation.OfferTimeout = 0 }, "offer_timeout"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAPIKeyResolution(t *testing.T) {
	t.Setenv("TOWOW_TEST_KEY", "sk-test")

	cfg := Default()
	cfg.LLM.APIKeyEnv = "TOWOW_TEST_KEY"
	assert.Equal(t, "sk-test", cfg.LLM.APIKey())

	cfg.LLM.APIKeyEnv = ""
	assert.Empty(t, cfg.LLM.APIKey())
}

func TestExpandEnv_PreservesPlainYAML(t *testing.T) {
	in := []byte("pattern: \"^secret.*$\"\n")
	assert.Equal(t, in, ExpandEnv(in))
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	for level, want := range map[string]string{
		"debug": "DEBUG", "info": "INFO", "warn": "WARN", "error": "ERROR", "": "INFO",
	} {
		cfg.LogLevel = level
		assert.Equal(t, want, cfg.SlogLevel().String(), level)
	}
}
