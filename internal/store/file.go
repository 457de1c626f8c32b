package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps campaign files in a local directory. Versions are content
// hashes.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create story directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Name returns the backend description.
func (f *FileStore) Name() string {
	return "file:" + f.dir
}

// Read returns the file at path.
func (f *FileStore) Read(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(path)
}

func (f *FileStore) read(path string) (Document, error) {
	data, err := os.ReadFile(f.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Document{Path: path, Content: string(data), Version: contentVersion(data)}, nil
}

// Write replaces the file at path if version matches the stored content.
func (f *FileStore) Write(ctx context.Context, path, content, version string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read(path)
	switch {
	case errors.Is(err, ErrNotFound):
		if version != "" {
			return "", fmt.Errorf("%w: %s was removed", ErrWriteConflict, path)
		}
	case err != nil:
		return "", err
	case current.Version != version:
		return "", fmt.Errorf("%w: %s changed since it was read", ErrWriteConflict, path)
	}

	target := f.resolve(path)
	tmp, err := os.CreateTemp(filepath.Dir(target), ".aethel-*")
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return contentVersion([]byte(content)), nil
}

func (f *FileStore) resolve(path string) string {
	return filepath.Join(f.dir, filepath.FromSlash(path))
}

func contentVersion(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
