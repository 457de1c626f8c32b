package narrative

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Yates-Labs/aethel/internal/transcript"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = anthropic.ModelClaude3_7SonnetLatest

	anthropicStopRefusal = "refusal"
	anthropicMaxTokens   = 2000
)

// AnthropicProvider implements Provider using Anthropic's Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	config LLMConfig
}

// NewAnthropicProvider creates an Anthropic-backed provider.
func NewAnthropicProvider(config LLMConfig, opts ...option.RequestOption) (*AnthropicProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set ANTHROPIC_API_KEY or provide in config)", ErrInvalidConfig)
	}
	if config.Model == "" {
		config.Model = string(DefaultAnthropicModel)
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = anthropicMaxTokens
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(config.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &AnthropicProvider{
		client: anthropic.NewClient(clientOpts...),
		config: config,
	}, nil
}

// Name returns the provider identifier.
func (a *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// Reply sends the history and the new player turn to Anthropic.
func (a *AnthropicProvider) Reply(ctx context.Context, history []transcript.Exchange, text string) Result {
	start := time.Now()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		Messages:  anthropicMessages(history, text),
	}
	if a.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(a.config.Temperature))
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		r := classifyAnthropicError(err)
		r.Usage = a.usage(start, 0, 0)
		return r
	}

	usage := a.usage(start, int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens))

	if string(msg.StopReason) == anthropicStopRefusal {
		r := Blocked("refusal")
		r.Usage = usage
		return r
	}

	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok && strings.TrimSpace(tb.Text) != "" {
			parts = append(parts, tb.Text)
		}
	}
	if len(parts) == 0 {
		r := Blocked("empty response")
		r.Usage = usage
		return r
	}

	r := Ok(parts...)
	r.Usage = usage
	return r
}

func (a *AnthropicProvider) usage(start time.Time, in, out int) Usage {
	return Usage{
		Provider:     ProviderAnthropic,
		Model:        a.config.Model,
		InputTokens:  in,
		OutputTokens: out,
		Latency:      time.Since(start),
	}
}

// anthropicMessages maps the history onto alternating user/assistant turns.
// Consecutive entries with the same role are merged because the Messages API
// rejects back-to-back turns from one side.
func anthropicMessages(history []transcript.Exchange, text string) []anthropic.MessageParam {
	type turn struct {
		role  transcript.Role
		texts []string
	}

	var turns []turn
	push := func(role transcript.Role, t string) {
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].texts = append(turns[n-1].texts, t)
			return
		}
		turns = append(turns, turn{role: role, texts: []string{t}})
	}

	for _, ex := range history {
		if ex.IsEmpty() || !ex.Role.Valid() {
			continue
		}
		push(ex.Role, ex.Text())
	}
	push(transcript.RolePlayer, text)

	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		body := anthropic.NewTextBlock(strings.Join(t.texts, "\n\n"))
		if t.role == transcript.RolePlayer {
			msgs = append(msgs, anthropic.NewUserMessage(body))
		} else {
			msgs = append(msgs, anthropic.NewAssistantMessage(body))
		}
	}
	return msgs
}

// classifyAnthropicError sorts API failures into result variants.
func classifyAnthropicError(err error) Result {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// 529 is Anthropic's "overloaded" status.
		if isTransientStatus(apiErr.StatusCode) || apiErr.StatusCode == 529 {
			return TransientFailure(fmt.Errorf("anthropic: %w", err))
		}
		return Fatal(fmt.Errorf("anthropic: %w", err))
	}
	return TransientFailure(fmt.Errorf("anthropic: %w", err))
}
