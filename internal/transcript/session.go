package transcript

import (
	"fmt"
	"time"
)

// State is the position of a session in its turn cycle.
type State int

const (
	StateUninitialized State = iota
	StateBootstrapped
	StateAwaitingInput
	StateAwaitingResponse
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapped:
		return "bootstrapped"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateAwaitingResponse:
		return "awaiting_response"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session holds the state of one play session. It is owned by a single
// control flow and is not safe for concurrent use.
type Session struct {
	// ID identifies the session in the local journal
	ID string

	// Context is the bootstrap prompt sent as the first player-side entry
	Context Exchange

	// Acknowledgement is the bootstrap narrator reply to Context
	Acknowledgement Exchange

	// InitialStory is the transcript loaded at session start. It is never
	// modified during the session.
	InitialStory string

	// StartedAt is when the session was bootstrapped
	StartedAt time.Time

	exchanges []Exchange
	state     State
}

// NewSession bootstraps a session from the loaded story and the context
// prompt built by LoadContext.
func NewSession(id, initialStory, contextPrompt string) *Session {
	return &Session{
		ID:              id,
		Context:         NewExchange(RolePlayer, contextPrompt),
		Acknowledgement: NewExchange(RoleNarrator, DefaultAcknowledgement),
		InitialStory:    initialStory,
		StartedAt:       time.Now(),
		state:           StateBootstrapped,
	}
}

// State returns the current turn-cycle state.
func (s *Session) State() State {
	return s.state
}

// Len returns the number of exchanges logged since bootstrap.
func (s *Session) Len() int {
	return len(s.exchanges)
}

// Exchanges returns a copy of the exchanges logged since bootstrap.
func (s *Session) Exchanges() []Exchange {
	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// History returns the bootstrap entries followed by the session log, in the
// order the model expects them.
func (s *Session) History() []Exchange {
	out := make([]Exchange, 0, len(s.exchanges)+2)
	out = append(out, s.Context, s.Acknowledgement)
	out = append(out, s.exchanges...)
	return out
}

// Append adds one exchange with the given text parts. It fails with
// ErrEmptyContent when none of the parts carry text.
func (s *Session) Append(role Role, parts ...string) error {
	ex := Exchange{Role: role, Parts: parts}
	if ex.IsEmpty() {
		return ErrEmptyContent
	}
	return s.AppendRaw(ex)
}

// AppendRaw adds an exchange as received, including one without content.
// Empty exchanges are kept in the log and skipped when serialized.
func (s *Session) AppendRaw(ex Exchange) error {
	if s.state == StateUninitialized {
		return fmt.Errorf("%w: session not bootstrapped", ErrInvalidState)
	}
	if !ex.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, ex.Role)
	}
	s.exchanges = append(s.exchanges, ex)
	return nil
}

// BeginTurn moves the session to AwaitingResponse while a model call is in
// flight.
func (s *Session) BeginTurn() error {
	if !s.acceptsInput() {
		return fmt.Errorf("%w: cannot begin turn while %s", ErrInvalidState, s.state)
	}
	s.state = StateAwaitingResponse
	return nil
}

// EndTurn returns the session to AwaitingInput. It is called whether the
// model call succeeded or failed.
func (s *Session) EndTurn() {
	if s.state == StateAwaitingResponse {
		s.state = StateAwaitingInput
	}
}

// UndoLastTurn removes the most recent narrator entry, then the most recent
// player entry. It is a no-op at the bootstrap boundary.
func (s *Session) UndoLastTurn() error {
	if !s.acceptsInput() {
		return fmt.Errorf("%w: cannot undo while %s", ErrInvalidState, s.state)
	}
	s.popIf(RoleNarrator)
	s.popIf(RolePlayer)
	return nil
}

// Regenerate removes the most recent narrator entry and then removes and
// returns the text of the most recent player entry, so it can be sent to the
// model again. The caller appends the new pair once the model replies.
func (s *Session) Regenerate() (string, error) {
	if !s.acceptsInput() {
		return "", fmt.Errorf("%w: cannot regenerate while %s", ErrInvalidState, s.state)
	}

	n := len(s.exchanges)
	if n > 0 && s.exchanges[n-1].Role == RoleNarrator {
		n--
	}
	if n == 0 || s.exchanges[n-1].Role != RolePlayer {
		return "", ErrNothingToRegenerate
	}

	resend := s.exchanges[n-1].Text()
	s.exchanges = s.exchanges[:n-1]
	return resend, nil
}

func (s *Session) popIf(role Role) {
	n := len(s.exchanges)
	if n > 0 && s.exchanges[n-1].Role == role {
		s.exchanges = s.exchanges[:n-1]
	}
}

func (s *Session) acceptsInput() bool {
	return s.state == StateBootstrapped || s.state == StateAwaitingInput
}
