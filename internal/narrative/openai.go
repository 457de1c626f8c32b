package narrative

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Yates-Labs/aethel/internal/transcript"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAI finish reason and error codes that signal a content-safety rejection.
const (
	openAIFinishContentFilter = "content_filter"
	openAICodeContentFilter   = "content_filter"
	openAICodeContentPolicy   = "content_policy_violation"
)

// OpenAIProvider implements Provider using OpenAI's chat completions API.
type OpenAIProvider struct {
	client openai.Client
	config LLMConfig
}

// NewOpenAIProvider creates an OpenAI-backed provider.
// Returns an error if the API key or model is missing.
func NewOpenAIProvider(config LLMConfig, opts ...option.RequestOption) (*OpenAIProvider, error) {
	// Use config API key or fall back to environment variable
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set OPENAI_API_KEY or provide in config)", ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(config.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIProvider{
		client: openai.NewClient(clientOpts...),
		config: config,
	}, nil
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Reply sends the history and the new player turn to OpenAI.
func (o *OpenAIProvider) Reply(ctx context.Context, history []transcript.Exchange, text string) Result {
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.config.Model),
		Messages: openAIMessages(history, text),
	}

	// Set optional parameters if configured
	if o.config.Temperature > 0 {
		params.Temperature = openai.Float(float64(o.config.Temperature))
	}
	if o.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.config.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		r := classifyOpenAIError(err)
		r.Usage = o.usage(start, 0, 0)
		return r
	}

	usage := o.usage(start, int(completion.Usage.PromptTokens), int(completion.Usage.CompletionTokens))

	if len(completion.Choices) == 0 {
		r := Blocked("no choices returned")
		r.Usage = usage
		return r
	}

	choice := completion.Choices[0]
	switch {
	case choice.FinishReason == openAIFinishContentFilter:
		r := Blocked("content filter")
		r.Usage = usage
		return r
	case choice.Message.Refusal != "":
		r := Blocked(choice.Message.Refusal)
		r.Usage = usage
		return r
	case choice.Message.Content == "":
		r := Blocked("empty response")
		r.Usage = usage
		return r
	}

	r := Ok(choice.Message.Content)
	r.Usage = usage
	return r
}

func (o *OpenAIProvider) usage(start time.Time, in, out int) Usage {
	return Usage{
		Provider:     ProviderOpenAI,
		Model:        o.config.Model,
		InputTokens:  in,
		OutputTokens: out,
		Latency:      time.Since(start),
	}
}

// openAIMessages maps the transcript history onto chat roles: player turns
// are user messages and narrator turns are assistant messages.
func openAIMessages(history []transcript.Exchange, text string) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	for _, ex := range history {
		if ex.IsEmpty() {
			continue
		}
		switch ex.Role {
		case transcript.RolePlayer:
			msgs = append(msgs, openai.UserMessage(ex.Text()))
		case transcript.RoleNarrator:
			msgs = append(msgs, openai.AssistantMessage(ex.Text()))
		}
	}
	return append(msgs, openai.UserMessage(text))
}

// classifyOpenAIError sorts API failures into result variants.
func classifyOpenAIError(err error) Result {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == openAICodeContentFilter || apiErr.Code == openAICodeContentPolicy:
			return Blocked(apiErr.Message)
		case isTransientStatus(apiErr.StatusCode):
			return TransientFailure(fmt.Errorf("openai: %w", err))
		default:
			return Fatal(fmt.Errorf("openai: %w", err))
		}
	}

	// Anything without an HTTP status is a network or context failure.
	return TransientFailure(fmt.Errorf("openai: %w", err))
}

func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}
