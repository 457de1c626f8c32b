package narrative

import (
	"fmt"
	"time"
)

// Kind discriminates the outcome of a provider call.
type Kind int

const (
	// KindOK carries generated text.
	KindOK Kind = iota
	// KindBlocked means the model declined to answer on content grounds.
	KindBlocked
	// KindTransient is a retryable provider failure (rate limit, 5xx, network).
	KindTransient
	// KindFatal is any other failure; its message is shown verbatim.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindBlocked:
		return "blocked"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the outcome of one provider call. Exactly one variant is
// populated, selected by Kind.
type Result struct {
	Kind Kind

	// Parts is the generated text for KindOK. It may be empty.
	Parts []string

	// Feedback is the provider's stated reason for KindBlocked, if any.
	Feedback string

	// Err is the underlying failure for KindTransient and KindFatal.
	Err error

	// Usage describes the call for logging and telemetry.
	Usage Usage
}

// Usage captures model configuration and token usage for a call.
type Usage struct {
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Ok returns a successful result.
func Ok(parts ...string) Result {
	return Result{Kind: KindOK, Parts: parts}
}

// Blocked returns a content-safety rejection.
func Blocked(feedback string) Result {
	return Result{Kind: KindBlocked, Feedback: feedback}
}

// TransientFailure returns a retryable failure.
func TransientFailure(err error) Result {
	return Result{Kind: KindTransient, Err: err}
}

// Fatal returns a non-retryable failure.
func Fatal(err error) Result {
	return Result{Kind: KindFatal, Err: err}
}

// Message returns the user-facing description of a failure.
func (r Result) Message() string {
	switch r.Kind {
	case KindBlocked:
		if r.Feedback != "" {
			return "response blocked: " + r.Feedback
		}
		return "response blocked"
	case KindTransient, KindFatal:
		if r.Err != nil {
			return r.Err.Error()
		}
		return r.Kind.String() + " failure"
	default:
		return ""
	}
}
