package retriever

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/xhad/voicerag/internal/models"
	"github.com/xhad/voicerag/internal/types"
)

type RetrieverConfig struct {
	TopK           int
	ScoreThreshold float32 // matches scoring below this are dropped; 0 disables
}

// Retriever embeds chunks into a vector store and finds the ones closest to
// a question.
type Retriever struct {
	config   RetrieverConfig
	embedder embeddings.Embedder
	store    types.VectorStore
	next     int
}

func NewWithConfig(config RetrieverConfig, embedder embeddings.Embedder, store types.VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if config.TopK == 0 {
		config.TopK = 4
	}
	if config.TopK < 0 {
		return nil, fmt.Errorf("top k must be positive")
	}

	return &Retriever{
		config:   config,
		embedder: embedder,
		store:    store,
	}, nil
}

// Index embeds texts in one batch and appends them to the store.
func (r *Retriever) Index(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}

	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			ID:      uuid.NewString(),
			Index:   r.next + i,
			Content: text,
		}
	}

	if err := r.store.Add(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	r.next += len(texts)
	return nil
}

// Search returns the best matching chunks, most similar first.
func (r *Retriever) Search(ctx context.Context, query string) ([]models.Chunk, error) {
	n, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	scored, err := r.store.Search(ctx, vector, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	var chunks []models.Chunk
	for _, s := range scored {
		if r.config.ScoreThreshold > 0 && s.Score < r.config.ScoreThreshold {
			continue
		}
		chunks = append(chunks, s.Chunk)
	}
	return chunks, nil
}

func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// Reset drops every indexed chunk.
func (r *Retriever) Reset(ctx context.Context) error {
	if err := r.store.Reset(ctx); err != nil {
		return err
	}
	r.next = 0
	return nil
}

func (r *Retriever) Close(ctx context.Context) error {
	return r.store.Close(ctx)
}
