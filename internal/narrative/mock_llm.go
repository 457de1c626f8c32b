package narrative

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Yates-Labs/aethel/internal/transcript"
)

// MockProvider is a deterministic Provider for testing and offline play.
// Scripted results are returned in order; once exhausted it echoes the
// player's action back as a narrator line.
type MockProvider struct {
	mu sync.Mutex

	// Script holds the results returned by successive calls.
	Script []Result

	// Calls records the text of every player turn received.
	Calls []string

	// LastHistory stores the history passed to the most recent call.
	LastHistory []transcript.Exchange
}

// NewMockProvider creates a mock that returns the given results in order.
func NewMockProvider(script ...Result) *MockProvider {
	return &MockProvider{Script: script}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	return ProviderMock
}

// Reply returns the next scripted result or an echo of the player's action.
func (m *MockProvider) Reply(ctx context.Context, history []transcript.Exchange, text string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, text)
	m.LastHistory = append([]transcript.Exchange(nil), history...)

	if err := ctx.Err(); err != nil {
		return TransientFailure(err)
	}

	if len(m.Script) > 0 {
		r := m.Script[0]
		m.Script = m.Script[1:]
		r.Usage.Provider = ProviderMock
		return r
	}

	r := Ok(generateMockReply(text, len(history)))
	r.Usage.Provider = ProviderMock
	return r
}

// CallCount returns how many times Reply has been invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// generateMockReply creates a predictable narrator line from the action.
func generateMockReply(action string, historyLen int) string {
	action = strings.TrimSpace(action)
	if action == "" {
		action = "hesitate"
	}
	return fmt.Sprintf("You %s. The world of Aethel shifts around you (turn %d).", action, historyLen/2)
}
