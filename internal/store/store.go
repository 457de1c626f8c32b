// Package store reads and writes the campaign files that seed and persist a
// story: the running transcript, the world lore and the DM instructions.
//
// Every backend is versioned. Read returns an opaque version token and Write
// accepts the token of the version being replaced, so concurrent editors are
// detected instead of silently overwritten.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Campaign file names.
const (
	StoryFile        = "Story so far.txt"
	LoreFile         = "lore.html"
	InstructionsFile = "dm_instructions.txt"
)

var (
	// ErrNotFound is returned by Read when the file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrWriteConflict is returned by Write when the stored version no longer
	// matches the version the caller read.
	ErrWriteConflict = errors.New("write conflict")
)

// Document is one stored file.
type Document struct {
	Path    string
	Content string

	// Version identifies the stored revision. Empty means the file does not
	// exist yet.
	Version string
}

// Store is a versioned file store.
type Store interface {
	// Read returns the file at path, or ErrNotFound.
	Read(ctx context.Context, path string) (Document, error)

	// Write stores content at path and returns the new version. An empty
	// version creates the file; otherwise the write only succeeds when the
	// stored version still matches, and fails with ErrWriteConflict if not.
	Write(ctx context.Context, path, content, version string) (string, error)

	// Name describes the backend for logs and status output.
	Name() string
}

// SaveWithFallback writes content and recovers from one write conflict.
//
// On ErrWriteConflict the current version is re-read and the write retried
// once against it. When the file has disappeared in the meantime the retry
// creates it instead.
func SaveWithFallback(ctx context.Context, s Store, path, content, version string) (string, error) {
	v, err := s.Write(ctx, path, content, version)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrWriteConflict) {
		return "", err
	}

	current, rerr := s.Read(ctx, path)
	switch {
	case errors.Is(rerr, ErrNotFound):
		current.Version = ""
	case rerr != nil:
		return "", fmt.Errorf("re-read after conflict: %w", rerr)
	}

	v, err = s.Write(ctx, path, content, current.Version)
	if err != nil {
		return "", fmt.Errorf("retry after conflict: %w", err)
	}
	return v, nil
}
