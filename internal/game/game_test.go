package game

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Yates-Labs/aethel/internal/journal"
	"github.com/Yates-Labs/aethel/internal/narrative"
	"github.com/Yates-Labs/aethel/internal/store"
	"github.com/Yates-Labs/aethel/internal/transcript"
)

func newTestGame(t *testing.T, mock *narrative.MockProvider, files map[string]string, opts Options) (*Game, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore(files)
	g, err := Bootstrap(context.Background(), s, narrative.NewNarrator(mock), opts)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return g, s
}

func TestBootstrap_Defaults(t *testing.T) {
	g, _ := newTestGame(t, narrative.NewMockProvider(), nil, Options{SessionID: "s1"})

	if len(g.Warnings()) != 3 {
		t.Fatalf("expected a warning per missing file, got %v", g.Warnings())
	}
	if g.Session().InitialStory != transcript.DefaultStory {
		t.Errorf("expected default story, got %q", g.Session().InitialStory)
	}
	ctxPrompt := g.Session().Context.Text()
	if !strings.Contains(ctxPrompt, transcript.DefaultLore) || !strings.Contains(ctxPrompt, "Dungeon Master") {
		t.Errorf("context prompt should embed defaults, got %q", ctxPrompt)
	}
	if g.StoryVersion() != "" {
		t.Errorf("missing story should have no version, got %q", g.StoryVersion())
	}
	if g.Dirty() {
		t.Error("fresh session should not be dirty")
	}
}

// brokenStore fails every read with err.
type brokenStore struct {
	*store.MemoryStore
	err error
}

func (b *brokenStore) Read(ctx context.Context, path string) (store.Document, error) {
	return store.Document{}, b.err
}

func TestBootstrap_StoryReadError(t *testing.T) {
	s := &brokenStore{MemoryStore: store.NewMemoryStore(nil), err: errors.New("connection reset")}
	if _, err := Bootstrap(context.Background(), s, narrative.NewNarrator(narrative.NewMockProvider()), Options{}); err == nil {
		t.Fatal("expected bootstrap to fail when the story cannot be read")
	}
}

func TestGame_SaveScenario(t *testing.T) {
	mock := narrative.NewMockProvider(narrative.Ok("a corridor"))
	g, s := newTestGame(t, mock, map[string]string{
		store.StoryFile: "Player:\nlook\n\nDM:\nroom",
		store.LoreFile:  "<h1>Aethel</h1>",
	}, Options{})

	if _, err := g.Play(context.Background(), "go north"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !g.Dirty() {
		t.Error("session should be dirty after a turn")
	}

	if _, err := g.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	doc, err := s.Read(context.Background(), store.StoryFile)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "Player:\nlook\n\nDM:\nroom\n\nPlayer:\ngo north\n\nDM:\na corridor"
	if doc.Content != want {
		t.Fatalf("expected %q, got %q", want, doc.Content)
	}
	if g.StoryVersion() != doc.Version {
		t.Errorf("expected remembered version %s, got %s", doc.Version, g.StoryVersion())
	}
	if g.Dirty() {
		t.Error("session should be clean after save")
	}

	// Saving again is idempotent.
	if _, err := g.Save(context.Background()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	doc, _ = s.Read(context.Background(), store.StoryFile)
	if doc.Content != want {
		t.Errorf("second save changed content to %q", doc.Content)
	}
}

func TestGame_SaveAfterConcurrentEdit(t *testing.T) {
	g, s := newTestGame(t, narrative.NewMockProvider(narrative.Ok("a corridor")), map[string]string{
		store.StoryFile: "Player:\nlook\n\nDM:\nroom",
	}, Options{})

	s.Set(store.StoryFile, "edited in another tab")
	if _, err := g.Play(context.Background(), "go north"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, err := g.Save(context.Background()); err != nil {
		t.Fatalf("save should recover from the conflict: %v", err)
	}

	doc, _ := s.Read(context.Background(), store.StoryFile)
	if !strings.HasSuffix(doc.Content, "DM:\na corridor") {
		t.Errorf("unexpected saved content %q", doc.Content)
	}
}

func TestGame_SaveCreatesMissingStory(t *testing.T) {
	g, s := newTestGame(t, narrative.NewMockProvider(narrative.Ok("You wake.")), nil, Options{})

	if _, err := g.Play(context.Background(), "open eyes"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, err := g.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	doc, err := s.Read(context.Background(), store.StoryFile)
	if err != nil {
		t.Fatalf("story should have been created: %v", err)
	}
	want := transcript.DefaultStory + "\n\nPlayer:\nopen eyes\n\nDM:\nYou wake."
	if doc.Content != want {
		t.Errorf("expected %q, got %q", want, doc.Content)
	}
}

func TestGame_UndoAndRegenerate(t *testing.T) {
	mock := narrative.NewMockProvider(narrative.Ok("it creaks"), narrative.Ok("it swings open silently"))
	g, _ := newTestGame(t, mock, nil, Options{})
	ctx := context.Background()

	if _, err := g.Play(ctx, "open door"); err != nil {
		t.Fatalf("play: %v", err)
	}

	out, err := g.Regenerate(ctx)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if out.Reply != "it swings open silently" {
		t.Errorf("unexpected regenerated reply %q", out.Reply)
	}
	if mock.Calls[1] != "open door" {
		t.Errorf("regenerate should resend the player action, got %q", mock.Calls[1])
	}
	if g.Session().Len() != 2 {
		t.Fatalf("expected one pair after regenerate, got %d", g.Session().Len())
	}

	if err := g.Undo(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if g.Session().Len() != 0 {
		t.Errorf("undo should return to the bootstrap boundary, got %d", g.Session().Len())
	}
	if _, err := g.Regenerate(ctx); !errors.Is(err, transcript.ErrNothingToRegenerate) {
		t.Errorf("expected ErrNothingToRegenerate, got %v", err)
	}
}

func TestGame_RegenerateTransientRestoresTurn(t *testing.T) {
	mock := narrative.NewMockProvider(
		narrative.Ok("it creaks"),
		narrative.TransientFailure(errors.New("503")),
	)
	g, _ := newTestGame(t, mock, nil, Options{})
	ctx := context.Background()

	if _, err := g.Play(ctx, "open door"); err != nil {
		t.Fatalf("play: %v", err)
	}
	before := g.Story()

	if _, err := g.Regenerate(ctx); !errors.Is(err, narrative.ErrTransientProvider) {
		t.Fatalf("expected ErrTransientProvider, got %v", err)
	}
	if g.Story() != before {
		t.Errorf("transient failure should restore the turn, got %q", g.Story())
	}
}

func TestGame_Summary(t *testing.T) {
	g, _ := newTestGame(t, narrative.NewMockProvider(narrative.Ok("hello")), map[string]string{
		store.StoryFile: "",
	}, Options{})

	if got := g.Summary(5); got != transcript.NoHistory {
		t.Errorf("expected %q, got %q", transcript.NoHistory, got)
	}
	if _, err := g.Play(context.Background(), "hi"); err != nil {
		t.Fatalf("play: %v", err)
	}
	got := g.Summary(5)
	if !strings.Contains(got, "Player:") || !strings.Contains(got, "hello") {
		t.Errorf("unexpected summary %q", got)
	}
	if turn := g.TurnSummary(5); !strings.Contains(turn, "hello") {
		t.Errorf("unexpected turn summary %q", turn)
	}
}

func TestGame_JournalMirrorsLog(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	mock := narrative.NewMockProvider(narrative.Ok("it creaks"), narrative.Ok("darkness"), narrative.Ok("light"))
	g, s := newTestGame(t, mock, map[string]string{store.StoryFile: "Player:\nlook\n\nDM:\nroom"}, Options{Journal: j, SessionID: "s1"})

	for _, action := range []string{"open door", "enter"} {
		if _, err := g.Play(ctx, action); err != nil {
			t.Fatalf("play %q: %v", action, err)
		}
	}
	if _, err := g.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := g.Regenerate(ctx); err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	_, journaled, err := j.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := transcript.Serialize("", journaled)
	want := transcript.Serialize("", g.Session().Exchanges())
	if got != want {
		t.Fatalf("journal diverged from log:\n got %q\nwant %q", got, want)
	}

	// A resumed session carries the unsaved regenerated turn.
	resumed, err := Resume(ctx, s, narrative.NewNarrator(narrative.NewMockProvider()), "s1", Options{Journal: j})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Story() != g.Story() {
		t.Errorf("resumed story %q, want %q", resumed.Story(), g.Story())
	}
	if !resumed.Dirty() {
		t.Error("resumed session with an unsaved regenerate should be dirty")
	}
	if resumed.StoryVersion() != g.StoryVersion() {
		t.Errorf("resumed version %q, want %q", resumed.StoryVersion(), g.StoryVersion())
	}
}

func TestResume_RequiresJournal(t *testing.T) {
	s := store.NewMemoryStore(nil)
	if _, err := Resume(context.Background(), s, narrative.NewNarrator(narrative.NewMockProvider()), "s1", Options{}); err == nil {
		t.Error("expected error without a journal")
	}
}
