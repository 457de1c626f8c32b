package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v77/github"
)

var (
	// ErrNotFound is returned when the requested file or repository does not exist
	ErrNotFound = errors.New("github: not found")

	// ErrConflict is returned when a write was based on a stale file SHA
	ErrConflict = errors.New("github: write conflict")

	// ErrRateLimited is returned when the API rate limit has been exhausted
	ErrRateLimited = errors.New("github: rate limited")
)

// NewClient creates a GitHub API client with authentication
// token: GitHub personal access token
func NewClient(token string) *github.Client {
	client := github.NewClient(nil)
	if token == "" {
		return client
	}
	return client.WithAuthToken(token)
}

// GetFile fetches a single file from a repository
// ref may be empty to use the repository's default branch
func GetFile(ctx context.Context, client *github.Client, owner, repo, path, ref string) (*FileContent, error) {
	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}

	file, dir, _, err := client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, handleAPIError(err, fmt.Sprintf("failed to get %s", path))
	}
	if file == nil {
		if dir != nil {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return ParseFile(file, content), nil
}

// PutFile creates or updates a file with a single commit
// An empty sha creates the file; otherwise the update only succeeds if sha
// matches the file's current blob SHA
func PutFile(ctx context.Context, client *github.Client, owner, repo string, change FileChange) (*FileContent, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(change.Message),
		Content: []byte(change.Content),
	}
	if change.Branch != "" {
		opts.Branch = github.Ptr(change.Branch)
	}
	if change.SHA != "" {
		opts.SHA = github.Ptr(change.SHA)
	}
	if change.AuthorName != "" {
		opts.Committer = &github.CommitAuthor{
			Name:  github.Ptr(change.AuthorName),
			Email: github.Ptr(change.AuthorEmail),
		}
	}

	var (
		resp *github.RepositoryContentResponse
		err  error
	)
	if change.SHA == "" {
		resp, _, err = client.Repositories.CreateFile(ctx, owner, repo, change.Path, opts)
	} else {
		resp, _, err = client.Repositories.UpdateFile(ctx, owner, repo, change.Path, opts)
	}
	if err != nil {
		return nil, handleAPIError(err, fmt.Sprintf("failed to write %s", change.Path))
	}

	out := &FileContent{
		Path:    change.Path,
		Content: change.Content,
	}
	if resp != nil && resp.Content != nil {
		out.SHA = resp.Content.GetSHA()
		out.HTMLURL = resp.Content.GetHTMLURL()
	}
	if resp != nil {
		out.CommitSHA = resp.Commit.GetSHA()
	}
	return out, nil
}

// ParseFile converts a go-github RepositoryContent to our FileContent struct
func ParseFile(file *github.RepositoryContent, content string) *FileContent {
	return &FileContent{
		Path:    file.GetPath(),
		SHA:     file.GetSHA(),
		Size:    file.GetSize(),
		Content: content,
		HTMLURL: file.GetHTMLURL(),
	}
}

// handleAPIError maps go-github errors onto package sentinels
func handleAPIError(err error, message string) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%w: %s: resets at %v", ErrRateLimited, message, rateLimitErr.Rate.Reset.Time)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %s: secondary limit, retry after %v", ErrRateLimited, message, abuseErr.GetRetryAfter())
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, message)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s: %s", ErrConflict, message, respErr.Message)
		case http.StatusUnprocessableEntity:
			// Returned when a create targets an existing file (no sha supplied)
			return fmt.Errorf("%w: %s: %s", ErrConflict, message, respErr.Message)
		}
	}

	return fmt.Errorf("%s: %w", message, err)
}
