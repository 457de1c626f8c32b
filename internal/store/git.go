package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/storage/memory"
)

// GitStore keeps campaign files in any git remote. The repository is cloned
// into memory; saves are committed and pushed. Versions are blob hashes at
// HEAD.
type GitStore struct {
	mu     sync.Mutex
	url    string
	branch plumbing.ReferenceName
	auth   transport.AuthMethod
	author object.Signature
	repo   *git.Repository
}

// GitConfig configures a GitStore.
type GitConfig struct {
	URL    string
	Branch string

	// Token enables HTTP basic auth, as used by GitHub and most forges.
	Token string

	AuthorName  string
	AuthorEmail string
}

// NewGitStore clones the repository into memory.
func NewGitStore(ctx context.Context, cfg GitConfig) (*GitStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("git store requires a repository URL")
	}

	s := &GitStore{
		url: cfg.URL,
		author: object.Signature{
			Name:  cfg.AuthorName,
			Email: cfg.AuthorEmail,
		},
	}
	if s.author.Name == "" {
		s.author.Name = "aethel"
	}
	if s.author.Email == "" {
		s.author.Email = "aethel@localhost"
	}
	if cfg.Branch != "" {
		s.branch = plumbing.NewBranchReferenceName(cfg.Branch)
	}
	if cfg.Token != "" {
		s.auth = &http.BasicAuth{Username: "aethel", Password: cfg.Token}
	}

	repo, err := git.CloneContext(ctx, memory.NewStorage(), memfs.New(), &git.CloneOptions{
		URL:           cfg.URL,
		Auth:          s.auth,
		ReferenceName: s.branch,
		SingleBranch:  s.branch != "",
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", cfg.URL, err)
	}
	s.repo = repo
	return s, nil
}

// Name returns the backend description.
func (s *GitStore) Name() string {
	if s.branch != "" {
		return "git:" + s.url + "@" + s.branch.Short()
	}
	return "git:" + s.url
}

// Read pulls the latest commit and returns the file at path.
func (s *GitStore) Read(ctx context.Context, path string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pull(ctx); err != nil {
		return Document{}, err
	}
	return s.readHead(path)
}

func (s *GitStore) readHead(path string) (Document, error) {
	head, err := s.repo.Head()
	if err != nil {
		return Document{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return Document{}, fmt.Errorf("load HEAD commit: %w", err)
	}

	file, err := commit.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	content, err := file.Contents()
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Document{Path: path, Content: content, Version: file.Hash.String()}, nil
}

// Write commits content to path and pushes it.
func (s *GitStore) Write(ctx context.Context, path, content, version string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pull(ctx); err != nil {
		return "", err
	}

	current, err := s.readHead(path)
	switch {
	case errors.Is(err, ErrNotFound):
		if version != "" {
			return "", fmt.Errorf("%w: %s was removed", ErrWriteConflict, path)
		}
	case err != nil:
		return "", err
	case current.Version != version:
		return "", fmt.Errorf("%w: %s changed since it was read", ErrWriteConflict, path)
	case current.Content == content:
		// Nothing to commit.
		return current.Version, nil
	}

	head, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	w, err := s.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	if err := util.WriteFile(w.Filesystem, path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	blob, err := w.Add(path)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", path, err)
	}

	sig := s.author
	sig.When = time.Now()
	if _, err := w.Commit("Update "+path, &git.CommitOptions{Author: &sig}); err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}

	err = s.repo.PushContext(ctx, &git.PushOptions{Auth: s.auth})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		// Drop the local commit so the next pull fast-forwards cleanly.
		rerr := w.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset})
		return "", pushError(path, err, rerr)
	}

	return blob.String(), nil
}

// pushError classifies a failed push. A failed rollback is reported too, since
// the stray local commit blocks later pulls.
func pushError(path string, pushErr, resetErr error) error {
	if resetErr != nil {
		pushErr = errors.Join(pushErr, fmt.Errorf("reset after failed push: %w", resetErr))
	}
	if errors.Is(pushErr, git.ErrNonFastForwardUpdate) {
		return fmt.Errorf("%w: remote moved while saving %s: %w", ErrWriteConflict, path, pushErr)
	}
	return fmt.Errorf("push %s: %w", path, pushErr)
}

func (s *GitStore) pull(ctx context.Context) error {
	w, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	err = w.PullContext(ctx, &git.PullOptions{
		RemoteName:    git.DefaultRemoteName,
		ReferenceName: s.branch,
		SingleBranch:  s.branch != "",
		Auth:          s.auth,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return fmt.Errorf("%w: local history diverged from %s", ErrWriteConflict, s.url)
	default:
		return fmt.Errorf("pull %s: %w", s.url, err)
	}
}
