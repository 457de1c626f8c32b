package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gh "github.com/Yates-Labs/aethel/internal/github"
	"github.com/google/go-github/v77/github"
)

// GitHubStore keeps campaign files in a GitHub repository through the
// contents API. Versions are blob SHAs.
type GitHubStore struct {
	client *github.Client
	owner  string
	repo   string
	branch string
	author string
	email  string
}

// GitHubOption configures a GitHubStore.
type GitHubOption func(*GitHubStore)

// WithBranch selects the branch to read and commit to.
func WithBranch(branch string) GitHubOption {
	return func(s *GitHubStore) { s.branch = branch }
}

// WithCommitter sets the committer recorded on saves.
func WithCommitter(name, email string) GitHubOption {
	return func(s *GitHubStore) {
		s.author = name
		s.email = email
	}
}

// NewGitHubStore returns a store for repository, which may be "owner/repo"
// or a github.com URL.
func NewGitHubStore(client *github.Client, repository string, opts ...GitHubOption) (*GitHubStore, error) {
	owner, repo := parseHostedGitURL(repository, "github.com")
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid GitHub repository %q, expected owner/repo", repository)
	}
	s := &GitHubStore{client: client, owner: owner, repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns the backend description.
func (s *GitHubStore) Name() string {
	name := "github:" + s.owner + "/" + s.repo
	if s.branch != "" {
		name += "@" + s.branch
	}
	return name
}

// Read fetches the file at path.
func (s *GitHubStore) Read(ctx context.Context, path string) (Document, error) {
	file, err := gh.GetFile(ctx, s.client, s.owner, s.repo, path, s.branch)
	if err != nil {
		return Document{}, mapGitHubError(err)
	}
	return Document{Path: path, Content: file.Content, Version: file.SHA}, nil
}

// Write commits content to path.
func (s *GitHubStore) Write(ctx context.Context, path, content, version string) (string, error) {
	message := "Update " + path
	if version == "" {
		message = "Create " + path
	}

	file, err := gh.PutFile(ctx, s.client, s.owner, s.repo, gh.FileChange{
		Path:        path,
		Content:     content,
		Message:     message,
		Branch:      s.branch,
		SHA:         version,
		AuthorName:  s.author,
		AuthorEmail: s.email,
	})
	if err != nil {
		return "", mapGitHubError(err)
	}
	return file.SHA, nil
}

func mapGitHubError(err error) error {
	switch {
	case errors.Is(err, gh.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gh.ErrConflict):
		return fmt.Errorf("%w: %v", ErrWriteConflict, err)
	default:
		return err
	}
}

// parseHostedGitURL extracts owner and repository from a hosted git URL or an
// "owner/repo" shorthand.
func parseHostedGitURL(url, host string) (owner, repo string) {
	url = strings.TrimSpace(url)
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "git@")

	// SSH form uses host:owner/repo
	url = strings.Replace(url, host+":", host+"/", 1)
	url = strings.TrimPrefix(url, host+"/")
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")

	parts := strings.Split(url, "/")
	if len(parts) >= 2 {
		return parts[0], parts[1]
	}
	return "", url
}
