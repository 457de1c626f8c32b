package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/memory"
)

// seedRemote creates a bare repository on disk holding one commit with files.
func seedRemote(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, true); err != nil {
		t.Fatalf("init remote: %v", err)
	}

	fs := memfs.New()
	seed, err := git.Init(memory.NewStorage(), git.WithWorkTree(fs))
	if err != nil {
		t.Fatalf("init seed: %v", err)
	}
	w, err := seed.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for path, content := range files {
		if err := util.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		if _, err := w.Add(path); err != nil {
			t.Fatalf("add %s: %v", path, err)
		}
	}
	sig := &object.Signature{Name: "seed", Email: "seed@example.com", When: time.Now()}
	if _, err := w.Commit("seed campaign", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := seed.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{dir}}); err != nil {
		t.Fatalf("remote: %v", err)
	}
	if err := seed.Push(&git.PushOptions{RemoteName: "origin"}); err != nil {
		t.Fatalf("push seed: %v", err)
	}
	return dir
}

func TestGitStore_ReadWrite(t *testing.T) {
	ctx := context.Background()
	remote := seedRemote(t, map[string]string{
		LoreFile:  "<h1>Aethel</h1>",
		StoryFile: "Player:\nlook",
	})

	s, err := NewGitStore(ctx, GitConfig{URL: remote})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	doc, err := s.Read(ctx, StoryFile)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if doc.Content != "Player:\nlook" || doc.Version == "" {
		t.Fatalf("unexpected document %+v", doc)
	}

	if _, err := s.Read(ctx, InstructionsFile); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.Write(ctx, StoryFile, "stale", "0000"); !errors.Is(err, ErrWriteConflict) {
		t.Errorf("expected ErrWriteConflict for stale version, got %v", err)
	}

	v, err := s.Write(ctx, StoryFile, "Player:\nlook\n\nDM:\nroom", doc.Version)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	// A fresh clone sees the pushed commit.
	other, err := NewGitStore(ctx, GitConfig{URL: remote})
	if err != nil {
		t.Fatalf("second clone: %v", err)
	}
	saved, err := other.Read(ctx, StoryFile)
	if err != nil {
		t.Fatalf("read saved: %v", err)
	}
	if saved.Content != "Player:\nlook\n\nDM:\nroom" || saved.Version != v {
		t.Errorf("unexpected saved document %+v (want version %s)", saved, v)
	}
}

func TestGitStore_SaveUnchanged(t *testing.T) {
	ctx := context.Background()
	remote := seedRemote(t, map[string]string{StoryFile: "Player:\nlook"})

	s, err := NewGitStore(ctx, GitConfig{URL: remote})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	doc, err := s.Read(ctx, StoryFile)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// Saving the content already at HEAD is a no-op.
	v, err := SaveWithFallback(ctx, s, StoryFile, doc.Content, doc.Version)
	if err != nil {
		t.Fatalf("save unchanged: %v", err)
	}
	if v != doc.Version {
		t.Errorf("expected version %s, got %s", doc.Version, v)
	}

	v1, err := SaveWithFallback(ctx, s, StoryFile, "Player:\nlook\n\nDM:\nroom", v)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	v2, err := SaveWithFallback(ctx, s, StoryFile, "Player:\nlook\n\nDM:\nroom", v1)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if v2 != v1 {
		t.Errorf("repeated save changed the version: %s -> %s", v1, v2)
	}
}

func TestPushError(t *testing.T) {
	resetFailed := errors.New("worktree locked")
	network := errors.New("connection reset")

	tests := []struct {
		name         string
		pushErr      error
		resetErr     error
		wantConflict bool
	}{
		{"rejected", git.ErrNonFastForwardUpdate, nil, true},
		{"rejected and reset failed", git.ErrNonFastForwardUpdate, resetFailed, true},
		{"network", network, nil, false},
		{"network and reset failed", network, resetFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pushError(StoryFile, tt.pushErr, tt.resetErr)
			if errors.Is(err, ErrWriteConflict) != tt.wantConflict {
				t.Errorf("conflict = %v, want %v (%v)", errors.Is(err, ErrWriteConflict), tt.wantConflict, err)
			}
			if !errors.Is(err, tt.pushErr) {
				t.Errorf("push error lost: %v", err)
			}
			if tt.resetErr != nil && !errors.Is(err, tt.resetErr) {
				t.Errorf("reset error lost: %v", err)
			}
		})
	}
}

func TestNewGitStore_RequiresURL(t *testing.T) {
	if _, err := NewGitStore(context.Background(), GitConfig{}); err == nil {
		t.Error("expected error without URL")
	}
}
