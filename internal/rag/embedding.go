package rag

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Common errors for embedding operations
var (
	ErrEmptyTexts      = errors.New("no texts provided for embedding")
	ErrMissingAPIKey   = errors.New("OPENAI_API_KEY environment variable not set")
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// DefaultEmbeddingDimension matches text-embedding-3-small.
const DefaultEmbeddingDimension = 1536

// Embedder defines the interface for generating text embeddings
type Embedder interface {
	// Embed returns one vector per text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension
	Dimension() int
}

// EmbedderConfig configures an OpenAIEmbedder.
type EmbedderConfig struct {
	Model     string
	Dimension int
	APIKey    string // falls back to OPENAI_API_KEY
	BaseURL   string
}

// OpenAIEmbedder implements Embedder using OpenAI's embeddings API
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates a new OpenAI embedder instance
func NewOpenAIEmbedder(cfg EmbedderConfig, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultEmbeddingDimension
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIEmbedder{
		client:    openai.NewClient(clientOpts...),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// Dimension returns the embedding vector dimension
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// Embed generates embeddings for the provided texts using OpenAI's API
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:          e.model,
		Dimensions:     openai.Int(int64(e.dimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, idx)
		}
		// Convert []float64 to []float32
		v := make([]float32, len(data.Embedding))
		for j, val := range data.Embedding {
			v[j] = float32(val)
		}
		vectors[idx] = v
	}

	return vectors, nil
}
