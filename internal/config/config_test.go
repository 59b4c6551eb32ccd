package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigFileDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "app:\n  logLevel: warn\n")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, "gemini-2.0-flash", cfg.AI.Model)
	assert.Equal(t, 0, cfg.AI.MaxRetries)
	assert.Equal(t, 144, cfg.Render.DPI())
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.NotNil(t, cfg.Prompts)
}

func TestOperationConfigFallbacks(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
ai:
  apiKey: global-key
  model: gemini-2.0-flash
  timeout: 45s
  scoring:
    model: gemini-2.5-pro
    maxRetries: 1
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	scoring := cfg.GetOperationConfig(OpScoring)
	assert.Equal(t, "gemini-2.5-pro", scoring.Model)
	assert.Equal(t, "global-key", scoring.APIKey)
	assert.Equal(t, 1, *scoring.MaxRetries)
	assert.Equal(t, 90*time.Second, *scoring.Timeout)
	assert.True(t, scoring.CircuitBreaker.Enabled)

	questions := cfg.GetOperationConfig(OpQuestions)
	assert.Equal(t, "gemini-2.0-flash", questions.Model)
	assert.Equal(t, 0, *questions.MaxRetries)
	assert.InDelta(t, 0.7, float64(*questions.Temperature), 0.001)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AI:      AIConfig{Provider: "gemini", Timeout: time.Minute},
			Server:  ServerConfig{Port: "8080"},
			App:     AppConfig{DefaultFormat: "text", SupportedFormats: []string{"json", "text"}, MaxFileSize: 1024},
			Render:  RenderConfig{Command: "pdftoppm", Scale: 2},
			Session: SessionConfig{Backend: "memory", TTL: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key is allowed", mutate: func(c *Config) { c.AI.APIKey = "" }},
		{name: "bad timeout", mutate: func(c *Config) { c.AI.Timeout = 0 }, wantErr: "AI timeout"},
		{name: "bad format", mutate: func(c *Config) { c.App.DefaultFormat = "xml" }, wantErr: "invalid default format"},
		{name: "bad scale", mutate: func(c *Config) { c.Render.Scale = 0 }, wantErr: "render scale"},
		{name: "half tls", mutate: func(c *Config) { c.Server.TLS.CertFile = "cert.pem" }, wantErr: "TLS requires"},
		{name: "bad backend", mutate: func(c *Config) { c.Session.Backend = "postgres" }, wantErr: "invalid session backend"},
		{name: "redis without host", mutate: func(c *Config) { c.Session.Backend = "redis" }, wantErr: "requires host and port"},
		{name: "unknown provider", mutate: func(c *Config) { c.AI.Scoring.Provider = "openai" }, wantErr: "unsupported AI provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyFallbacksSplitsAPIKeys(t *testing.T) {
	cfg := &Config{Server: ServerConfig{APIKeys: []string{"a, b,,c"}}}
	cfg.applyFallbacks()
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Server.APIKeys)
}

func TestPromptStoreLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	userFile := writeFile(t, dir, "scoring.md", "  Score these answers:\n%s  ")
	systemFile := writeFile(t, dir, "system.md", "You are an interview coach.")

	cfg := &Config{AI: AIConfig{Scoring: OperationAIConfig{
		Prompts: PromptConfig{UserFile: userFile, SystemFile: systemFile},
	}}}

	store, err := LoadPrompts(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Score these answers:\n%s", store.Get(OpScoring).User)
	assert.Equal(t, "You are an interview coach.", store.Get(OpScoring).System)
	assert.Empty(t, store.Get(OpQuestions).User)
	assert.Len(t, store.Files(), 2)

	require.NoError(t, os.WriteFile(userFile, []byte("Updated %s"), 0600))
	count, err := store.Reload(userFile)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "Updated %s", store.Get(OpScoring).User)

	require.NoError(t, os.WriteFile(userFile, []byte("   "), 0600))
	_, err = store.Reload(userFile)
	require.Error(t, err)
	assert.Equal(t, "Updated %s", store.Get(OpScoring).User)
}

func TestLoadPromptsMissingFile(t *testing.T) {
	cfg := &Config{AI: AIConfig{Questions: OperationAIConfig{
		Prompts: PromptConfig{UserFile: "/nonexistent/prompt.md"},
	}}}

	_, err := LoadPrompts(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accessible")
}

func TestNilPromptStore(t *testing.T) {
	var store *PromptStore
	assert.Empty(t, store.Get(OpScoring))
	assert.Nil(t, store.Files())
	count, err := store.Reload("x")
	assert.NoError(t, err)
	assert.Zero(t, count)
}
