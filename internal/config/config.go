// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Yates-Labs/aethel/internal/narrative"
	"github.com/caarlos0/env/v6"
)

// ErrInvalidConfig is returned when settings are inconsistent.
var ErrInvalidConfig = errors.New("invalid configuration")

// Store backends.
const (
	StoreFile   = "file"
	StoreGitHub = "github"
	StoreGit    = "git"
	StoreMemory = "memory"
)

type Config struct {
	// LLM settings
	Provider        string  `env:"AETHEL_PROVIDER" envDefault:"openai"`
	Model           string  `env:"AETHEL_MODEL"`
	Temperature     float32 `env:"AETHEL_TEMPERATURE" envDefault:"0.9"`
	MaxTokens       int     `env:"AETHEL_MAX_TOKENS"`
	RateLimit       int     `env:"AETHEL_RATE_LIMIT" envDefault:"20"`
	OpenAIAPIKey    string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string  `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey string  `env:"ANTHROPIC_API_KEY"`

	// Story storage
	Store          string `env:"AETHEL_STORE" envDefault:"file"`
	StoryDir       string `env:"AETHEL_STORY_DIR" envDefault:"."`
	StoryRepo      string `env:"AETHEL_STORY_REPO"`
	StoryBranch    string `env:"AETHEL_STORY_BRANCH"`
	GitHubToken    string `env:"GITHUB_TOKEN"`
	CommitterName  string `env:"AETHEL_COMMITTER_NAME" envDefault:"aethel"`
	CommitterEmail string `env:"AETHEL_COMMITTER_EMAIL" envDefault:"aethel@localhost"`

	// Local journal
	JournalPath string `env:"AETHEL_JOURNAL" envDefault:"aethel.db"`

	// Observability
	LogDir    string `env:"AETHEL_LOG_DIR" envDefault:"logs"`
	LogLevel  string `env:"AETHEL_LOG_LEVEL" envDefault:"info"`
	Telemetry bool   `env:"AETHEL_TELEMETRY" envDefault:"true"`

	// Lore recall
	MilvusAddress  string `env:"MILVUS_ADDRESS" envDefault:"localhost:19530"`
	LoreCollection string `env:"AETHEL_LORE_COLLECTION" envDefault:"aethel_lore"`
	EmbeddingModel string `env:"AETHEL_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	SummaryWindow int `env:"AETHEL_SUMMARY_WINDOW" envDefault:"5"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Provider {
	case narrative.ProviderOpenAI, narrative.ProviderAnthropic, narrative.ProviderMock:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}

	switch c.Store {
	case StoreFile, StoreMemory:
	case StoreGitHub:
		if c.StoryRepo == "" {
			return fmt.Errorf("%w: AETHEL_STORY_REPO is required for the github store", ErrInvalidConfig)
		}
		if c.GitHubToken == "" {
			return fmt.Errorf("%w: GITHUB_TOKEN is required for the github store", ErrInvalidConfig)
		}
	case StoreGit:
		if c.StoryRepo == "" {
			return fmt.Errorf("%w: AETHEL_STORY_REPO is required for the git store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f out of range [0, 2]", ErrInvalidConfig, c.Temperature)
	}
	if c.SummaryWindow <= 0 {
		return fmt.Errorf("%w: summary window must be positive", ErrInvalidConfig)
	}
	return nil
}

// LLMConfig returns the provider settings.
func (c *Config) LLMConfig() narrative.LLMConfig {
	cfg := narrative.LLMConfig{
		Provider:    c.Provider,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	switch c.Provider {
	case narrative.ProviderOpenAI:
		cfg.APIKey = c.OpenAIAPIKey
		cfg.BaseURL = c.OpenAIBaseURL
		if cfg.Model == "" {
			cfg.Model = narrative.DefaultLLMConfig().Model
		}
	case narrative.ProviderAnthropic:
		cfg.APIKey = c.AnthropicAPIKey
	}
	return cfg
}
