// Package journal keeps a local SQLite record of every play session so an
// unsaved story survives a crash or a closed terminal.
//
// The journal mirrors the session log exactly: appends add rows, undo and
// regenerate truncate them, and a save records how much of the log reached the
// story store.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Yates-Labs/aethel/internal/transcript"
	_ "github.com/mattn/go-sqlite3"
)

// ErrSessionNotFound is returned when no session has the requested ID.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	provider TEXT,
	backend TEXT,
	initial_story TEXT NOT NULL,
	context TEXT NOT NULL,
	story_version TEXT,
	saved_at DATETIME,
	saved_len INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS exchanges (
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	parts TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (session_id, seq),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);`

// Record describes a journaled session.
type Record struct {
	ID           string
	StartedAt    time.Time
	UpdatedAt    time.Time
	Provider     string
	Backend      string
	InitialStory string
	Context      string

	// StoryVersion is the store version the session last read or wrote.
	StoryVersion string

	// SavedAt is zero until the session is first saved.
	SavedAt time.Time

	// SavedLen is the number of exchanges covered by the last save.
	SavedLen int
}

// Summary is one row of the session listing.
type Summary struct {
	ID        string
	StartedAt time.Time
	UpdatedAt time.Time
	Provider  string
	Backend   string
	Exchanges int
	SavedLen  int
}

// Unsaved reports whether the session has exchanges the store has not seen.
func (s Summary) Unsaved() bool {
	return s.Exchanges != s.SavedLen
}

// Journal is a SQLite-backed session journal.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal tables: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartSession records a new session.
func (j *Journal) StartSession(ctx context.Context, r Record) error {
	now := time.Now().UTC()
	if r.StartedAt.IsZero() {
		r.StartedAt = now
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, updated_at, provider, backend, initial_story, context, story_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, now, r.Provider, r.Backend, r.InitialStory, r.Context, r.StoryVersion)
	if err != nil {
		return fmt.Errorf("failed to start session %s: %w", r.ID, err)
	}
	return nil
}

// Append stores the exchange at position seq of the session log.
func (j *Journal) Append(ctx context.Context, id string, seq int, ex transcript.Exchange) error {
	parts, err := json.Marshal(ex.Parts)
	if err != nil {
		return fmt.Errorf("failed to encode exchange: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO exchanges (session_id, seq, role, parts, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, seq, string(ex.Role), string(parts), now); err != nil {
		return fmt.Errorf("failed to append exchange: %w", err)
	}
	if err := touch(ctx, tx, id, now); err != nil {
		return err
	}
	return tx.Commit()
}

// Truncate drops every exchange at position n or later.
func (j *Journal) Truncate(ctx context.Context, id string, n int) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin truncate: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM exchanges WHERE session_id = ? AND seq >= ?`, id, n); err != nil {
		return fmt.Errorf("failed to truncate session %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET saved_len = MIN(saved_len, ?) WHERE id = ?`, n, id); err != nil {
		return fmt.Errorf("failed to truncate session %s: %w", id, err)
	}
	if err := touch(ctx, tx, id, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkSaved records that the first n exchanges reached the store at version.
func (j *Journal) MarkSaved(ctx context.Context, id, version string, n int) error {
	now := time.Now().UTC()
	res, err := j.db.ExecContext(ctx,
		`UPDATE sessions SET story_version = ?, saved_at = ?, saved_len = ?, updated_at = ? WHERE id = ?`,
		version, now, n, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark session %s saved: %w", id, err)
	}
	return requireRow(res, id)
}

// Load returns the session record and its exchanges in log order.
func (j *Journal) Load(ctx context.Context, id string) (Record, []transcript.Exchange, error) {
	var (
		r       Record
		savedAt sql.NullTime
		version sql.NullString
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT id, started_at, updated_at, provider, backend, initial_story, context, story_version, saved_at, saved_len
		FROM sessions WHERE id = ?`, id).Scan(
		&r.ID, &r.StartedAt, &r.UpdatedAt, &r.Provider, &r.Backend,
		&r.InitialStory, &r.Context, &version, &savedAt, &r.SavedLen)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Record{}, nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	r.StoryVersion = version.String
	if savedAt.Valid {
		r.SavedAt = savedAt.Time
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT role, parts FROM exchanges WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return Record{}, nil, fmt.Errorf("failed to load exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []transcript.Exchange
	for rows.Next() {
		var role, parts string
		if err := rows.Scan(&role, &parts); err != nil {
			return Record{}, nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		ex := transcript.Exchange{Role: transcript.Role(role)}
		if err := json.Unmarshal([]byte(parts), &ex.Parts); err != nil {
			return Record{}, nil, fmt.Errorf("failed to decode exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return Record{}, nil, fmt.Errorf("failed to load exchanges: %w", err)
	}

	return r, exchanges, nil
}

// Latest returns the ID of the most recently updated session.
func (j *Journal) Latest(ctx context.Context) (string, error) {
	var id string
	err := j.db.QueryRowContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to find latest session: %w", err)
	}
	return id, nil
}

// List returns up to limit sessions, most recently updated first.
func (j *Journal) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.updated_at, s.provider, s.backend, s.saved_len,
		       (SELECT COUNT(*) FROM exchanges e WHERE e.session_id = s.id)
		FROM sessions s
		ORDER BY s.updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.UpdatedAt, &s.Provider, &s.Backend, &s.SavedLen, &s.Exchanges); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func touch(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
