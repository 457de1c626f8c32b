// Package narrative drives the Dungeon Master side of an Aethel session.
// It defines a provider-agnostic model interface whose calls return an
// explicit Result variant instead of layered errors, concrete providers for
// OpenAI and Anthropic, a deterministic mock for testing, and the Narrator
// that applies each result to a transcript session.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Yates-Labs/aethel/internal/transcript"
)

var (
	ErrInvalidConfig     = errors.New("invalid LLM configuration")
	ErrUnknownProvider   = errors.New("unknown LLM provider")
	ErrTransientProvider = errors.New("the storyteller is temporarily unavailable")
)

// Provider generates the next narrator reply.
// Implementations must be stateless and thread-safe: the full history is
// passed on every call.
type Provider interface {
	// Reply sends the ordered history plus a new player turn and classifies
	// the outcome. It never returns a Go error; failures are Result variants.
	Reply(ctx context.Context, history []transcript.Exchange, text string) Result

	// Name returns the provider identifier used in logs and telemetry.
	Name() string
}

// Provider identifiers accepted by NewProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Provider selects the backend (openai, anthropic, mock)
	Provider string

	// Model specifies the model identifier (e.g., "gpt-4o")
	Model string

	// Temperature controls randomness (0 = provider default)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL overrides the provider endpoint
	BaseURL string
}

// DefaultLLMConfig returns sensible defaults for storytelling.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o",
		Temperature: 0.9,
		MaxTokens:   2000,
	}
}

// NewProvider constructs the provider named in config.
func NewProvider(config LLMConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case ProviderOpenAI, "":
		return NewOpenAIProvider(config)
	case ProviderAnthropic:
		return NewAnthropicProvider(config)
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, config.Provider)
	}
}
