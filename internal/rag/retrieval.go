package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// IndexLore chunks an HTML lore document, embeds the chunks not yet stored
// and inserts them.
func IndexLore(ctx context.Context, doc string, embedder Embedder, vs VectorStore, opts IndexOptions) (IndexStats, error) {
	if embedder == nil {
		return IndexStats{}, fmt.Errorf("embedder cannot be nil")
	}
	if vs == nil {
		return IndexStats{}, fmt.Errorf("vector store cannot be nil")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}

	chunks, sections, err := ChunkLore(doc, opts.MaxChunkChars)
	if err != nil {
		return IndexStats{}, err
	}
	stats := IndexStats{Chunks: len(chunks), Sections: sections}

	if opts.ForceReindex {
		if err := vs.Reset(ctx); err != nil {
			return stats, fmt.Errorf("failed to reset lore index: %w", err)
		}
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	existing, err := vs.Existing(ctx, ids)
	if err != nil {
		return stats, fmt.Errorf("failed to check indexed chunks: %w", err)
	}

	seen := make(map[string]bool, len(chunks))
	pending := make([]LoreChunk, 0, len(chunks))
	for _, c := range chunks {
		if existing[c.ID] || seen[c.ID] {
			stats.Skipped++
			continue
		}
		seen[c.ID] = true
		pending = append(pending, c)
	}

	for start := 0; start < len(pending); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("indexing cancelled: %w", err)
		}
		end := min(start+opts.BatchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = embeddingText(c)
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("failed to embed batch %d: %w", stats.Batches, err)
		}
		if err := vs.Insert(ctx, batch, vectors); err != nil {
			return stats, fmt.Errorf("failed to store batch %d: %w", stats.Batches, err)
		}

		stats.Batches++
		stats.Indexed += len(batch)
		slog.Debug("lore batch indexed", "batch", stats.Batches, "chunks", len(batch))
	}

	return stats, nil
}

// embeddingText prefixes the heading so short passages keep their context.
func embeddingText(c LoreChunk) string {
	if c.Heading == "" {
		return c.Text
	}
	return c.Heading + "\n" + c.Text
}

// Retriever provides semantic recall over the indexed lore.
type Retriever struct {
	embedder    Embedder
	vectorStore VectorStore
}

// NewRetriever creates a new Retriever instance.
func NewRetriever(embedder Embedder, vectorStore VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	return &Retriever{embedder: embedder, vectorStore: vectorStore}, nil
}

// Search returns the topK lore passages most similar to query.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding generated for query")
	}

	results, err := r.vectorStore.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search lore: %w", err)
	}
	return results, nil
}

// FormatResults renders recalled passages for display.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No lore matched."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if r.Chunk.Heading != "" {
			fmt.Fprintf(&b, "[%s] ", r.Chunk.Heading)
		}
		fmt.Fprintf(&b, "(%.2f)\n%s", r.Score, r.Chunk.Text)
	}
	return b.String()
}
