package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/voicerag/internal/models"
	"github.com/xhad/voicerag/pkg/store"
)

func chunk(i int, content string) models.Chunk {
	return models.Chunk{ID: content, Index: i, Content: content}
}

func TestMemoryStore_Search(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	err := s.Add(ctx,
		[]models.Chunk{chunk(0, "east"), chunk(1, "north"), chunk(2, "north-east")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	)
	require.NoError(t, err)

	results, err := s.Search(ctx, []float32{0, 2}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "north", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "north-east", results[1].Content)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-3)
}

func TestMemoryStore_LimitLargerThanIndex(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Add(ctx, []models.Chunk{chunk(0, "only")}, [][]float32{{0.3, 0.4}}))

	results, err := s.Search(ctx, []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMemoryStore_Empty(t *testing.T) {
	results, err := store.NewMemoryStore().Search(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStore_ResetAndCount(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Add(ctx, []models.Chunk{chunk(0, "a"), chunk(1, "b")}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.Add(ctx, []models.Chunk{chunk(2, "c")}, [][]float32{{1, 1}}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.Reset(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	assert.Error(t, s.Add(ctx, []models.Chunk{chunk(0, "a")}, nil))

	require.NoError(t, s.Add(ctx, []models.Chunk{chunk(0, "a")}, [][]float32{{1, 0}}))
	assert.Error(t, s.Add(ctx, []models.Chunk{chunk(1, "b")}, [][]float32{{1, 0, 0}}))

	_, err := s.Search(ctx, []float32{1, 0, 0}, 1)
	assert.Error(t, err)
}
