package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Yates-Labs/aethel/internal/transcript"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

type capturedRequest struct {
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func newJSONServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testHistory() []transcript.Exchange {
	s := newSession()
	return s.History()
}

func newTestOpenAI(t *testing.T, srv *httptest.Server) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider(
		LLMConfig{Model: "gpt-4o", APIKey: "test-key", BaseURL: srv.URL + "/"},
		openaioption.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestOpenAIProvider_Reply_OK(t *testing.T) {
	var captured capturedRequest
	srv := newJSONServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "The door creaks open."}}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
	}`, &captured)

	r := newTestOpenAI(t, srv).Reply(context.Background(), testHistory(), "open door")
	if r.Kind != KindOK {
		t.Fatalf("expected OK, got %s (%s)", r.Kind, r.Message())
	}
	if len(r.Parts) != 1 || r.Parts[0] != "The door creaks open." {
		t.Errorf("unexpected parts %q", r.Parts)
	}
	if r.Usage.InputTokens != 12 || r.Usage.OutputTokens != 5 {
		t.Errorf("unexpected usage %+v", r.Usage)
	}

	roles := make([]string, len(captured.Messages))
	for i, m := range captured.Messages {
		roles[i] = m.Role
	}
	want := []string{"user", "assistant", "user"}
	if len(roles) != len(want) {
		t.Fatalf("expected roles %v, got %v", want, roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("expected roles %v, got %v", want, roles)
		}
	}
}

func TestOpenAIProvider_Reply_ContentFilter(t *testing.T) {
	srv := newJSONServer(t, http.StatusOK, `{
		"id": "chatcmpl-2",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o",
		"choices": [{"index": 0, "finish_reason": "content_filter", "message": {"role": "assistant", "content": ""}}]
	}`, nil)

	r := newTestOpenAI(t, srv).Reply(context.Background(), testHistory(), "something awful")
	if r.Kind != KindBlocked {
		t.Fatalf("expected blocked, got %s", r.Kind)
	}
}

func TestOpenAIProvider_Reply_ServerError(t *testing.T) {
	srv := newJSONServer(t, http.StatusServiceUnavailable, `{"error": {"message": "overloaded", "type": "server_error"}}`, nil)

	r := newTestOpenAI(t, srv).Reply(context.Background(), testHistory(), "look")
	if r.Kind != KindTransient {
		t.Fatalf("expected transient, got %s", r.Kind)
	}
}

func TestOpenAIProvider_Reply_Unauthorized(t *testing.T) {
	srv := newJSONServer(t, http.StatusUnauthorized, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`, nil)

	r := newTestOpenAI(t, srv).Reply(context.Background(), testHistory(), "look")
	if r.Kind != KindFatal {
		t.Fatalf("expected fatal, got %s", r.Kind)
	}
}

func TestClassifyOpenAIError_ContentPolicy(t *testing.T) {
	err := &openai.Error{StatusCode: http.StatusBadRequest, Code: openAICodeContentPolicy, Message: "policy"}

	r := classifyOpenAIError(err)
	if r.Kind != KindBlocked || r.Feedback != "policy" {
		t.Fatalf("expected blocked with feedback, got %+v", r)
	}
}

func TestClassifyOpenAIError_Network(t *testing.T) {
	r := classifyOpenAIError(errors.New("dial tcp: connection refused"))
	if r.Kind != KindTransient {
		t.Fatalf("expected transient, got %s", r.Kind)
	}
}

func TestNewOpenAIProvider_MissingConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := NewOpenAIProvider(LLMConfig{Model: "gpt-4o"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for missing key, got %v", err)
	}
	if _, err := NewOpenAIProvider(LLMConfig{APIKey: "k"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for missing model, got %v", err)
	}
}

func newTestAnthropic(t *testing.T, srv *httptest.Server) *AnthropicProvider {
	t.Helper()
	p, err := NewAnthropicProvider(
		LLMConfig{Model: "claude-test", APIKey: "test-key", BaseURL: srv.URL + "/"},
		anthropicoption.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestAnthropicProvider_Reply_OK(t *testing.T) {
	var captured capturedRequest
	srv := newJSONServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": [{"type": "text", "text": "Mist rolls in."}],
		"stop_reason": "end_turn",
		"stop_sequence": null,
		"usage": {"input_tokens": 20, "output_tokens": 4}
	}`, &captured)

	r := newTestAnthropic(t, srv).Reply(context.Background(), testHistory(), "wait")
	if r.Kind != KindOK {
		t.Fatalf("expected OK, got %s (%s)", r.Kind, r.Message())
	}
	if r.Parts[0] != "Mist rolls in." {
		t.Errorf("unexpected parts %q", r.Parts)
	}
	if len(captured.Messages) != 3 {
		t.Errorf("expected 3 messages, got %d", len(captured.Messages))
	}
}

func TestAnthropicProvider_Reply_Refusal(t *testing.T) {
	srv := newJSONServer(t, http.StatusOK, `{
		"id": "msg_2",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": [],
		"stop_reason": "refusal",
		"stop_sequence": null,
		"usage": {"input_tokens": 20, "output_tokens": 0}
	}`, nil)

	r := newTestAnthropic(t, srv).Reply(context.Background(), testHistory(), "something awful")
	if r.Kind != KindBlocked {
		t.Fatalf("expected blocked, got %s", r.Kind)
	}
}

func TestAnthropicProvider_Reply_Overloaded(t *testing.T) {
	srv := newJSONServer(t, 529, `{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`, nil)

	r := newTestAnthropic(t, srv).Reply(context.Background(), testHistory(), "look")
	if r.Kind != KindTransient {
		t.Fatalf("expected transient, got %s", r.Kind)
	}
}

func TestAnthropicMessages_MergesConsecutiveRoles(t *testing.T) {
	history := []transcript.Exchange{
		transcript.NewExchange(transcript.RolePlayer, "context"),
		transcript.NewExchange(transcript.RoleNarrator, "ready"),
		transcript.NewExchange(transcript.RolePlayer, "dangling"),
		{Role: transcript.RoleNarrator},
	}

	msgs := anthropicMessages(history, "new action")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 alternating messages, got %d", len(msgs))
	}
	if msgs[2].Role != "user" {
		t.Errorf("expected final message from user, got %s", msgs[2].Role)
	}
}
