package config

import (
	"errors"
	"os"
	"testing"

	"github.com/Yates-Labs/aethel/internal/narrative"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "AETHEL_PROVIDER", "AETHEL_STORE", "AETHEL_STORY_DIR", "AETHEL_MODEL", "AETHEL_SUMMARY_WINDOW", "AETHEL_TEMPERATURE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != narrative.ProviderOpenAI {
		t.Errorf("expected openai provider, got %q", cfg.Provider)
	}
	if cfg.Store != StoreFile || cfg.StoryDir != "." {
		t.Errorf("expected local file store, got %q in %q", cfg.Store, cfg.StoryDir)
	}
	if cfg.SummaryWindow != 5 {
		t.Errorf("expected summary window 5, got %d", cfg.SummaryWindow)
	}
	if cfg.LLMConfig().Model != "gpt-4o" {
		t.Errorf("expected default model, got %q", cfg.LLMConfig().Model)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("AETHEL_PROVIDER", " Anthropic ")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("AETHEL_STORE", "github")
	t.Setenv("AETHEL_STORY_REPO", "octo/campaign")
	t.Setenv("GITHUB_TOKEN", "ghp")
	t.Setenv("AETHEL_TEMPERATURE", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	llm := cfg.LLMConfig()
	if llm.Provider != narrative.ProviderAnthropic || llm.APIKey != "sk-ant" || llm.Temperature != 0.5 {
		t.Errorf("unexpected LLM config %+v", llm)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Provider: "mock", Store: StoreFile, SummaryWindow: 5, Temperature: 0.9}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "gemini" }, wantErr: true},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "s3" }, wantErr: true},
		{name: "github without repo", mutate: func(c *Config) { c.Store = StoreGitHub; c.GitHubToken = "t" }, wantErr: true},
		{name: "github without token", mutate: func(c *Config) { c.Store = StoreGitHub; c.StoryRepo = "o/r" }, wantErr: true},
		{name: "git with repo", mutate: func(c *Config) { c.Store = StoreGit; c.StoryRepo = "https://example.com/r.git" }},
		{name: "temperature too high", mutate: func(c *Config) { c.Temperature = 3 }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.SummaryWindow = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
