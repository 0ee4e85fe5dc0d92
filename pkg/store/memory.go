package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xhad/voicerag/internal/models"
)

type record struct {
	chunk  models.Chunk
	vector []float32
	norm   float64
}

// MemoryStore is an ephemeral vector index ranked by cosine similarity.
type MemoryStore struct {
	mu      sync.RWMutex
	records []record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (ms *MemoryStore) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	if len(ms.records) > 0 {
		dim = len(ms.records[0].vector)
	}
	for _, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), dim)
		}
	}

	for i, chunk := range chunks {
		ms.records = append(ms.records, record{
			chunk:  chunk,
			vector: vectors[i],
			norm:   norm(vectors[i]),
		})
	}
	return nil
}

// Search returns up to limit chunks, most similar first. Ties keep
// insertion order.
func (ms *MemoryStore) Search(ctx context.Context, query []float32, limit int) ([]models.ScoredChunk, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if len(ms.records) == 0 || limit <= 0 {
		return nil, nil
	}
	if len(query) != len(ms.records[0].vector) {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d",
			len(query), len(ms.records[0].vector))
	}

	queryNorm := norm(query)
	results := make([]models.ScoredChunk, 0, len(ms.records))
	for _, r := range ms.records {
		results = append(results, models.ScoredChunk{
			Chunk: r.chunk,
			Score: cosine(query, r.vector, queryNorm, r.norm),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (ms *MemoryStore) Count(ctx context.Context) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.records), nil
}

func (ms *MemoryStore) Reset(ctx context.Context) error {
	ms.mu.Lock()
	ms.records = nil
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) Close(ctx context.Context) error {
	return ms.Reset(ctx)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA, normB float64) float32 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (normA * normB))
}
