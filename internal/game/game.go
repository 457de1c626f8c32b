// Package game ties a transcript session to its story store, its narrator and
// the local journal. It is the layer the CLI talks to.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Yates-Labs/aethel/internal/journal"
	"github.com/Yates-Labs/aethel/internal/narrative"
	"github.com/Yates-Labs/aethel/internal/store"
	"github.com/Yates-Labs/aethel/internal/transcript"
	"github.com/google/uuid"
)

// Journal records session progress locally. *journal.Journal implements it.
type Journal interface {
	StartSession(ctx context.Context, r journal.Record) error
	Append(ctx context.Context, id string, seq int, ex transcript.Exchange) error
	Truncate(ctx context.Context, id string, n int) error
	MarkSaved(ctx context.Context, id, version string, n int) error
	Load(ctx context.Context, id string) (journal.Record, []transcript.Exchange, error)
}

// Options configures a game.
type Options struct {
	// Journal mirrors the session log when set.
	Journal Journal

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// SessionID overrides the generated session ID.
	SessionID string
}

// Game is one play session.
type Game struct {
	session  *transcript.Session
	store    store.Store
	narrator *narrative.Narrator
	journal  Journal
	logger   *slog.Logger

	storyVersion string
	lastSaved    string
	warnings     []string

	// mirrored is the log as last written to the journal
	mirrored []transcript.Exchange
}

// Bootstrap loads the campaign from s and starts a new session.
func Bootstrap(ctx context.Context, s store.Store, n *narrative.Narrator, opts Options) (*Game, error) {
	campaign, err := LoadCampaign(ctx, s)
	if err != nil {
		return nil, err
	}

	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	g := newGame(s, n, opts)
	g.session = transcript.NewSession(id, campaign.Story.Content, campaign.ContextPrompt())
	g.storyVersion = campaign.Story.Version
	g.lastSaved = g.Story()
	g.warnings = campaign.Warnings

	for _, w := range g.warnings {
		g.logger.Warn("campaign file fallback", "session", id, "warning", w)
	}

	if g.journal != nil {
		err := g.journal.StartSession(ctx, journal.Record{
			ID:           id,
			StartedAt:    g.session.StartedAt,
			Provider:     n.Provider().Name(),
			Backend:      s.Name(),
			InitialStory: g.session.InitialStory,
			Context:      g.session.Context.Text(),
			StoryVersion: g.storyVersion,
		})
		if err != nil {
			g.logger.Warn("journal unavailable, continuing without it", "error", err)
			g.journal = nil
		}
	}

	g.logger.Info("session bootstrapped", "session", id, "backend", s.Name(), "story_version", g.storyVersion)
	return g, nil
}

// Resume restores a journaled session, including exchanges that were never
// saved to the store.
func Resume(ctx context.Context, s store.Store, n *narrative.Narrator, id string, opts Options) (*Game, error) {
	if opts.Journal == nil {
		return nil, errors.New("resume requires a journal")
	}

	rec, exchanges, err := opts.Journal.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resume session: %w", err)
	}

	g := newGame(s, n, opts)
	g.session = transcript.NewSession(rec.ID, rec.InitialStory, rec.Context)
	g.session.StartedAt = rec.StartedAt
	for _, ex := range exchanges {
		if err := g.session.AppendRaw(ex); err != nil {
			return nil, fmt.Errorf("failed to replay journaled exchange: %w", err)
		}
	}

	saved := min(rec.SavedLen, len(exchanges))
	g.storyVersion = rec.StoryVersion
	g.lastSaved = transcript.Serialize(rec.InitialStory, exchanges[:saved])
	g.mirrored = slices.Clone(exchanges)

	g.logger.Info("session resumed", "session", rec.ID, "exchanges", len(exchanges), "unsaved", len(exchanges)-saved)
	return g, nil
}

func newGame(s store.Store, n *narrative.Narrator, opts Options) *Game {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Game{
		store:    s,
		narrator: n,
		journal:  opts.Journal,
		logger:   logger,
	}
}

// Session returns the underlying transcript session.
func (g *Game) Session() *transcript.Session {
	return g.session
}

// Warnings lists campaign files that fell back to defaults at bootstrap.
func (g *Game) Warnings() []string {
	return g.warnings
}

// StoryVersion is the store version the next save will replace.
func (g *Game) StoryVersion() string {
	return g.storyVersion
}

// Story returns the canonical save string for the session.
func (g *Game) Story() string {
	return transcript.Serialize(g.session.InitialStory, g.session.Exchanges())
}

// Dirty reports whether the session has changed since it was last saved.
func (g *Game) Dirty() bool {
	return g.Story() != g.lastSaved
}

// Play sends one player action to the narrator.
func (g *Game) Play(ctx context.Context, input string) (narrative.Outcome, error) {
	out, err := g.narrator.Take(ctx, g.session, input)
	g.syncJournal(ctx)
	return out, err
}

// Undo removes the last turn.
func (g *Game) Undo(ctx context.Context) error {
	if err := g.session.UndoLastTurn(); err != nil {
		return err
	}
	g.syncJournal(ctx)
	return nil
}

// Regenerate discards the last narrator reply and asks again with the same
// player action. When the provider is temporarily unavailable the discarded
// turn is put back so nothing is lost.
func (g *Game) Regenerate(ctx context.Context) (narrative.Outcome, error) {
	before := g.session.Exchanges()

	action, err := g.session.Regenerate()
	if err != nil {
		return narrative.Outcome{}, err
	}

	out, err := g.narrator.Take(ctx, g.session, action)
	if errors.Is(err, narrative.ErrTransientProvider) {
		for _, ex := range before[g.session.Len():] {
			if rerr := g.session.AppendRaw(ex); rerr != nil {
				return out, errors.Join(err, rerr)
			}
		}
	}

	g.syncJournal(ctx)
	return out, err
}

// Save writes the canonical save string to the story file.
func (g *Game) Save(ctx context.Context) (string, error) {
	content := g.Story()

	version, err := store.SaveWithFallback(ctx, g.store, store.StoryFile, content, g.storyVersion)
	if err != nil {
		return "", fmt.Errorf("failed to save %s: %w", store.StoryFile, err)
	}

	g.storyVersion = version
	g.lastSaved = content
	g.logger.Info("story saved", "session", g.session.ID, "version", version, "bytes", len(content))

	if g.journal != nil {
		if err := g.journal.MarkSaved(ctx, g.session.ID, version, g.session.Len()); err != nil {
			g.logger.Warn("journal save mark failed", "session", g.session.ID, "error", err)
		}
	}
	return version, nil
}

// Summary condenses the current story with the line-window heuristic.
func (g *Game) Summary(window int) string {
	return transcript.Summarize(g.Story(), window)
}

// TurnSummary condenses the session log turn by turn.
func (g *Game) TurnSummary(window int) string {
	return transcript.SummarizeTurns(g.session.Exchanges(), window)
}

// syncJournal brings the journal in line with the session log: rows past the
// shared prefix are dropped, then the remainder is appended.
func (g *Game) syncJournal(ctx context.Context) {
	if g.journal == nil {
		return
	}

	current := g.session.Exchanges()
	prefix := 0
	for prefix < len(current) && prefix < len(g.mirrored) && sameExchange(current[prefix], g.mirrored[prefix]) {
		prefix++
	}

	id := g.session.ID
	if prefix < len(g.mirrored) {
		if err := g.journal.Truncate(ctx, id, prefix); err != nil {
			g.logger.Warn("journal truncate failed", "session", id, "error", err)
			return
		}
		g.mirrored = g.mirrored[:prefix]
	}
	for i := prefix; i < len(current); i++ {
		if err := g.journal.Append(ctx, id, i, current[i]); err != nil {
			g.logger.Warn("journal append failed", "session", id, "seq", i, "error", err)
			return
		}
		g.mirrored = append(g.mirrored, current[i])
	}
}

func sameExchange(a, b transcript.Exchange) bool {
	return a.Role == b.Role && slices.Equal(a.Parts, b.Parts)
}
