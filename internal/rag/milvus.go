package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Common errors for Milvus operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
)

const (
	fieldChunkID   = "chunk_id"
	fieldHeading   = "heading"
	fieldText      = "text"
	fieldOrdinal   = "ordinal"
	fieldEmbedding = "embedding"
)

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string
	Dimension      int

	// HNSW index parameters
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultMilvusConfig returns the default lore collection settings.
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		CollectionName: "aethel_lore",
		Dimension:      DefaultEmbeddingDimension,
		M:              16,
		EfConstruction: 256,
		EfSearch:       64,
	}
}

// MilvusStore implements VectorStore using Milvus
type MilvusStore struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusStore connects to Milvus and ensures the lore collection exists.
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &MilvusStore{client: c, config: config}
	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return store, nil
}

// ensureCollection creates and loads the collection if it doesn't exist
func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if has {
		return m.client.LoadCollection(ctx, m.config.CollectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: m.config.CollectionName,
		Description:    "Aethel lore passages",
		Fields: []*entity.Field{
			{
				Name:       fieldChunkID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       fieldHeading,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       fieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
			{
				Name:     fieldOrdinal,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(m.config.Dimension)},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.config.CollectionName, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// Insert stores chunks and their embeddings, then flushes.
func (m *MilvusStore) Insert(ctx context.Context, chunks []LoreChunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", ErrInsertFailed, len(chunks), len(vectors))
	}

	ids := make([]string, len(chunks))
	headings := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	ordinals := make([]int64, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != m.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(vectors[i]))
		}
		ids[i] = c.ID
		headings[i] = c.Heading
		texts[i] = c.Text
		ordinals[i] = int64(c.Ordinal)
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(fieldChunkID, ids),
		entity.NewColumnVarChar(fieldHeading, headings),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnInt64(fieldOrdinal, ordinals),
		entity.NewColumnFloatVector(fieldEmbedding, m.config.Dimension, vectors),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}
	return nil
}

// Search performs a top-K cosine similarity search.
func (m *MilvusStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if len(vector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(vector))
	}

	sp, err := entity.NewIndexHNSWSearchParam(m.config.EfSearch)
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		"",
		[]string{fieldChunkID, fieldHeading, fieldText, fieldOrdinal},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	res := results[0]
	out := make([]SearchResult, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		r := SearchResult{Score: res.Scores[i]}
		for _, field := range res.Fields {
			switch col := field.(type) {
			case *entity.ColumnVarChar:
				switch col.Name() {
				case fieldChunkID:
					r.Chunk.ID = col.Data()[i]
				case fieldHeading:
					r.Chunk.Heading = col.Data()[i]
				case fieldText:
					r.Chunk.Text = col.Data()[i]
				}
			case *entity.ColumnInt64:
				if col.Name() == fieldOrdinal {
					r.Chunk.Ordinal = int(col.Data()[i])
				}
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// Existing reports which chunk IDs are already stored.
func (m *MilvusStore) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	results, err := m.client.Query(ctx, m.config.CollectionName, nil, idFilter(ids), []string{fieldChunkID})
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	for _, column := range results {
		if col, ok := column.(*entity.ColumnVarChar); ok && col.Name() == fieldChunkID {
			for _, id := range col.Data() {
				found[id] = true
			}
		}
	}
	return found, nil
}

// Reset drops and recreates the collection.
func (m *MilvusStore) Reset(ctx context.Context) error {
	if err := m.client.DropCollection(ctx, m.config.CollectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return m.ensureCollection(ctx)
}

// Close releases resources and closes the Milvus connection
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// idFilter builds a boolean expression matching any of ids.
func idFilter(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return fieldChunkID + " in [" + strings.Join(quoted, ", ") + "]"
}
