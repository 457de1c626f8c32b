package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Yates-Labs/aethel/internal/transcript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const instrumentationName = "github.com/Yates-Labs/aethel/internal/narrative"

const (
	// BlockedPlaceholder is the in-character narrator line used when the model
	// declines to continue the story.
	BlockedPlaceholder = "The threads of fate tangle, and the vision fades before it can take shape. The world waits for you to try another path, adventurer."

	// TransientSuggestion is shown when the provider is temporarily unavailable.
	TransientSuggestion = "The storyteller could not be reached. Nothing was recorded; wait a moment and send your action again."

	fatalPrefix = "An error occurred: "
)

// Outcome reports what a turn did to the session.
type Outcome struct {
	// Kind is the variant of the final provider result
	Kind Kind

	// Reply is the narrator text appended to the log, if any
	Reply string

	// Retried is set when a blocked response triggered the softened retry
	Retried bool

	// Message is the user-facing notice for non-OK outcomes
	Message string

	// Usage describes the final provider call
	Usage Usage
}

// Narrator runs player turns against a Provider and applies each result to a
// transcript session.
type Narrator struct {
	provider Provider
	limiter  *rate.Limiter
	logger   *slog.Logger
	tracer   trace.Tracer
	turns    metric.Int64Counter
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithRateLimit spaces provider calls to at most perMinute per minute.
// Non-positive values disable limiting.
func WithRateLimit(perMinute int) Option {
	return func(n *Narrator) {
		if perMinute <= 0 {
			n.limiter = nil
			return
		}
		n.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Narrator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNarrator creates a narrator for the given provider.
func NewNarrator(provider Provider, opts ...Option) *Narrator {
	n := &Narrator{
		provider: provider,
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"aethel.turns",
		metric.WithDescription("Player turns by provider outcome"),
	)
	if err == nil {
		n.turns = counter
	}

	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Provider returns the underlying provider.
func (n *Narrator) Provider() Provider {
	return n.provider
}

// Take sends one player action and records the result in the session.
//
//   - OK appends the player action and the narrator reply.
//   - Blocked is retried once with a softened prompt; if still blocked the
//     action is recorded with BlockedPlaceholder as the reply.
//   - Transient leaves the log untouched and returns ErrTransientProvider.
//   - Fatal records the action with the error text as the reply.
//
// The session always returns to AwaitingInput.
func (n *Narrator) Take(ctx context.Context, s *transcript.Session, input string) (Outcome, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Outcome{}, transcript.ErrEmptyContent
	}
	if err := s.BeginTurn(); err != nil {
		return Outcome{}, err
	}
	defer s.EndTurn()

	ctx, span := n.tracer.Start(ctx, "narrative.Take",
		trace.WithAttributes(attribute.String("llm.provider", n.provider.Name())))
	defer span.End()

	history := s.History()
	prompt := input
	retried := false

	for {
		r := n.call(ctx, history, prompt)

		switch r.Kind {
		case KindOK:
			if err := n.record(s, input, transcript.Exchange{Role: transcript.RoleNarrator, Parts: r.Parts}); err != nil {
				return Outcome{}, err
			}
			n.count(ctx, r.Kind, retried)
			return Outcome{Kind: KindOK, Reply: strings.Join(r.Parts, ""), Retried: retried, Usage: r.Usage}, nil

		case KindBlocked:
			if !retried {
				retried = true
				n.logger.Info("response blocked, retrying with softened prompt", "feedback", r.Feedback)
				prompt = SoftenPrompt(input)
				continue
			}
			if err := n.record(s, input, transcript.NewExchange(transcript.RoleNarrator, BlockedPlaceholder)); err != nil {
				return Outcome{}, err
			}
			n.count(ctx, r.Kind, retried)
			span.SetAttributes(attribute.String("llm.blocked_feedback", r.Feedback))
			return Outcome{Kind: KindBlocked, Reply: BlockedPlaceholder, Retried: true, Message: r.Message(), Usage: r.Usage}, nil

		case KindTransient:
			n.count(ctx, r.Kind, retried)
			span.SetStatus(codes.Error, r.Message())
			return Outcome{Kind: KindTransient, Retried: retried, Message: TransientSuggestion, Usage: r.Usage},
				fmt.Errorf("%w: %s", ErrTransientProvider, r.Message())

		case KindFatal:
			return n.fatal(ctx, span, s, input, r, retried)

		default:
			r.Err = fmt.Errorf("unrecognized provider result %s", r.Kind)
			return n.fatal(ctx, span, s, input, r, retried)
		}
	}
}

func (n *Narrator) fatal(ctx context.Context, span trace.Span, s *transcript.Session, input string, r Result, retried bool) (Outcome, error) {
	reply := fatalPrefix + r.Message()
	if err := n.record(s, input, transcript.NewExchange(transcript.RoleNarrator, reply)); err != nil {
		return Outcome{}, err
	}
	n.count(ctx, KindFatal, retried)
	span.SetStatus(codes.Error, r.Message())
	return Outcome{Kind: KindFatal, Reply: reply, Retried: retried, Message: r.Message(), Usage: r.Usage}, nil
}

// call waits for the rate limiter and invokes the provider.
func (n *Narrator) call(ctx context.Context, history []transcript.Exchange, prompt string) Result {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return TransientFailure(fmt.Errorf("rate limiter: %w", err))
		}
	}

	r := n.provider.Reply(ctx, history, prompt)

	n.logger.Info("provider call",
		"provider", n.provider.Name(),
		"model", r.Usage.Model,
		"result", r.Kind.String(),
		"input_tokens", r.Usage.InputTokens,
		"output_tokens", r.Usage.OutputTokens,
		"latency_ms", r.Usage.Latency.Milliseconds(),
	)
	if r.Kind == KindTransient || r.Kind == KindFatal {
		n.logger.Warn("provider call failed", "provider", n.provider.Name(), "error", r.Message())
	}

	return r
}

// record appends the player action and the narrator exchange.
func (n *Narrator) record(s *transcript.Session, input string, reply transcript.Exchange) error {
	if err := s.Append(transcript.RolePlayer, input); err != nil {
		return err
	}
	return s.AppendRaw(reply)
}

func (n *Narrator) count(ctx context.Context, kind Kind, retried bool) {
	if n.turns == nil {
		return
	}
	n.turns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("llm.provider", n.provider.Name()),
		attribute.String("result", kind.String()),
		attribute.Bool("retried", retried),
	))
}

// SoftenPrompt rewrites a blocked action as a request to reinterpret it within
// content guidelines.
func SoftenPrompt(action string) string {
	return "The player's last action could not be narrated as written. " +
		"Reinterpret it in a way that fits the story and stays within content guidelines, " +
		"keeping the player's intent where possible, then continue the story.\n\n" +
		"Player action: " + action
}
