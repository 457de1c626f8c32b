package transcript

import (
	"errors"
	"strings"
	"testing"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession("test", "Player:\nlook\n\nDM:\nroom", LoadContext(DefaultLore, DefaultInstructions, DefaultStory))
}

func TestNewSession_Bootstrap(t *testing.T) {
	s := newTestSession(t)

	if s.State() != StateBootstrapped {
		t.Fatalf("expected bootstrapped state, got %s", s.State())
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty log, got %d entries", s.Len())
	}

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 bootstrap entries, got %d", len(history))
	}
	if history[0].Role != RolePlayer || history[1].Role != RoleNarrator {
		t.Errorf("unexpected bootstrap roles: %s, %s", history[0].Role, history[1].Role)
	}
	if history[1].Text() != DefaultAcknowledgement {
		t.Errorf("unexpected acknowledgement %q", history[1].Text())
	}
}

func TestSession_BootstrapNeverSerialized(t *testing.T) {
	s := newTestSession(t)
	if err := s.Append(RolePlayer, "wave"); err != nil {
		t.Fatalf("append: %v", err)
	}

	got := Serialize(s.InitialStory, s.Exchanges())
	want := "Player:\nlook\n\nDM:\nroom\n\nPlayer:\nwave"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSession_Append(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		parts   []string
		wantErr error
	}{
		{name: "player text", role: RolePlayer, parts: []string{"hello"}},
		{name: "narrator multi part", role: RoleNarrator, parts: []string{"a", "b"}},
		{name: "no parts", role: RoleNarrator, parts: nil, wantErr: ErrEmptyContent},
		{name: "blank parts", role: RolePlayer, parts: []string{" ", ""}, wantErr: ErrEmptyContent},
		{name: "unknown role", role: Role("bard"), parts: []string{"la"}, wantErr: ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t)
			err := s.Append(tt.role, tt.parts...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if s.Len() != 0 {
					t.Errorf("failed append should not change the log")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Len() != 1 {
				t.Errorf("expected 1 entry, got %d", s.Len())
			}
		})
	}
}

func TestSession_AppendRawEmptyIsSkippedOnSerialize(t *testing.T) {
	s := newTestSession(t)
	if err := s.Append(RolePlayer, "pray"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendRaw(Exchange{Role: RoleNarrator}); err != nil {
		t.Fatalf("append raw: %v", err)
	}

	if s.Len() != 2 {
		t.Fatalf("expected empty exchange to be logged, got %d entries", s.Len())
	}
	got := Serialize("", s.Exchanges())
	if got != "Player:\npray" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestSession_AppendUninitialized(t *testing.T) {
	var s Session
	if err := s.Append(RolePlayer, "hi"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestSession_UndoLastTurn(t *testing.T) {
	s := newTestSession(t)
	mustAppend(t, s, RolePlayer, "open door")
	mustAppend(t, s, RoleNarrator, "it creaks")

	if err := s.UndoLastTurn(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected bootstrap-only log, got %d entries", s.Len())
	}
	if len(s.History()) != 2 {
		t.Fatalf("bootstrap entries must survive undo")
	}

	// Undo at the bootstrap boundary is a no-op.
	if err := s.UndoLastTurn(); err != nil {
		t.Fatalf("undo at boundary: %v", err)
	}
	if len(s.History()) != 2 {
		t.Fatalf("bootstrap entries must survive undo at boundary")
	}
}

func TestSession_UndoDanglingPlayer(t *testing.T) {
	s := newTestSession(t)
	mustAppend(t, s, RolePlayer, "first")
	mustAppend(t, s, RoleNarrator, "reply")
	mustAppend(t, s, RolePlayer, "second")

	if err := s.UndoLastTurn(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	ex := s.Exchanges()
	if len(ex) != 2 || ex[1].Text() != "reply" {
		t.Fatalf("expected only the dangling player entry removed, got %+v", ex)
	}
}

func TestSession_Regenerate(t *testing.T) {
	s := newTestSession(t)
	mustAppend(t, s, RolePlayer, "open door")
	mustAppend(t, s, RoleNarrator, "it creaks")

	resend, err := s.Regenerate()
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if resend != "open door" {
		t.Errorf("expected resend text %q, got %q", "open door", resend)
	}
	if s.Len() != 0 {
		t.Errorf("expected bootstrap-only log, got %d entries", s.Len())
	}
}

func TestSession_RegenerateNothing(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Regenerate(); !errors.Is(err, ErrNothingToRegenerate) {
		t.Fatalf("expected ErrNothingToRegenerate, got %v", err)
	}
}

func TestSession_StateMachine(t *testing.T) {
	s := newTestSession(t)

	if err := s.BeginTurn(); err != nil {
		t.Fatalf("begin turn: %v", err)
	}
	if s.State() != StateAwaitingResponse {
		t.Fatalf("expected awaiting response, got %s", s.State())
	}

	if err := s.BeginTurn(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for nested turn, got %v", err)
	}
	if err := s.UndoLastTurn(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for undo mid-turn, got %v", err)
	}
	if _, err := s.Regenerate(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for regenerate mid-turn, got %v", err)
	}

	s.EndTurn()
	if s.State() != StateAwaitingInput {
		t.Fatalf("expected awaiting input, got %s", s.State())
	}
}

func TestLoadContext(t *testing.T) {
	prompt := LoadContext("The Iron Citadel stands.", "Be the DM.", "Player:\nlook")

	for _, want := range []string{
		"Be the DM.",
		"<lore>\nThe Iron Citadel stands.\n</lore>",
		"<story>\nPlayer:\nlook\n</story>",
		"continue the story",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	verbatim := LoadContext("lore", "  Be the DM.\n", "story")
	if !strings.HasPrefix(verbatim, "  Be the DM.\n\n\n") {
		t.Errorf("instructions should be embedded verbatim, got %q", verbatim[:20])
	}

	if LoadContext("a", "b", "c") != LoadContext("a", "b", "c") {
		t.Error("LoadContext must be deterministic")
	}
}

func mustAppend(t *testing.T, s *Session, role Role, text string) {
	t.Helper()
	if err := s.Append(role, text); err != nil {
		t.Fatalf("append %s: %v", role, err)
	}
}
