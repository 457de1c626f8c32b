// Package rag indexes the world lore into a vector store and recalls the
// passages most relevant to a free-text question.
package rag

import (
	"context"
	"errors"
)

var (
	ErrEmptyQuery = errors.New("query cannot be empty")
	ErrNoLore     = errors.New("lore document has no indexable text")
)

// LoreChunk is one indexable passage of the lore document.
type LoreChunk struct {
	// ID is derived from the heading and text, so re-indexing unchanged lore
	// produces the same IDs.
	ID      string `json:"id"`
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text"`

	// Ordinal is the chunk's position in the document.
	Ordinal int `json:"ordinal"`
}

// SearchResult is a recalled chunk with its similarity score.
type SearchResult struct {
	Chunk LoreChunk `json:"chunk"`
	Score float32   `json:"score"`
}

// VectorStore persists chunk embeddings and answers similarity queries.
type VectorStore interface {
	// Insert stores chunks with their embeddings; vectors[i] belongs to chunks[i].
	Insert(ctx context.Context, chunks []LoreChunk, vectors [][]float32) error

	// Search returns the topK chunks closest to vector.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)

	// Existing reports which chunk IDs are already stored.
	Existing(ctx context.Context, ids []string) (map[string]bool, error)

	// Reset removes every stored chunk.
	Reset(ctx context.Context) error

	// Close releases resources and closes connections.
	Close() error
}

// IndexOptions configures lore indexing.
type IndexOptions struct {
	// BatchSize is the number of chunks embedded per API call.
	BatchSize int

	// MaxChunkChars bounds the size of a chunk.
	MaxChunkChars int

	// ForceReindex clears the store before indexing.
	ForceReindex bool
}

// DefaultIndexOptions returns sensible defaults for indexing.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BatchSize:     16,
		MaxChunkChars: 1200,
	}
}

// IndexStats reports what an indexing run did.
type IndexStats struct {
	Chunks   int
	Indexed  int
	Skipped  int
	Batches  int
	Sections int
}
