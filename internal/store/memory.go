package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MemoryStore keeps files in process memory. Versions are per-file revision
// counters. It backs offline play and tests.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string]Document
	rev   int
}

// NewMemoryStore returns a store seeded with the given path to content pairs.
func NewMemoryStore(seed map[string]string) *MemoryStore {
	m := &MemoryStore{files: make(map[string]Document, len(seed))}
	for path, content := range seed {
		m.put(path, content)
	}
	return m
}

// Name returns the backend description.
func (m *MemoryStore) Name() string {
	return "memory"
}

// Read returns the file at path.
func (m *MemoryStore) Read(_ context.Context, path string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.files[path]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return doc, nil
}

// Write stores content if version matches.
func (m *MemoryStore) Write(_ context.Context, path, content, version string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.files[path]
	if ok && current.Version != version {
		return "", fmt.Errorf("%w: %s is at %s", ErrWriteConflict, path, current.Version)
	}
	if !ok && version != "" {
		return "", fmt.Errorf("%w: %s was removed", ErrWriteConflict, path)
	}
	return m.put(path, content), nil
}

// Remove deletes path.
func (m *MemoryStore) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// Set replaces path unconditionally, as another editor would.
func (m *MemoryStore) Set(path, content string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(path, content)
}

func (m *MemoryStore) put(path, content string) string {
	m.rev++
	v := "r" + strconv.Itoa(m.rev)
	m.files[path] = Document{Path: path, Content: content, Version: v}
	return v
}
