package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/voicerag/internal/models"
	"github.com/xhad/voicerag/pkg/store"
)

func getTestConfig(t *testing.T) store.VectorStoreConfig {
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return store.VectorStoreConfig{
		ConnString: connString,
		TableName:  "test_transcript_chunks",
		VectorDim:  3,
	}
}

func TestPgVectorStore(t *testing.T) {
	ctx := context.Background()

	s, err := store.NewWithConfig(ctx, getTestConfig(t))
	require.NoError(t, err)
	defer s.Close()

	session := s.Scope(uuid.NewString())
	other := s.Scope(uuid.NewString())
	defer session.Close(ctx)
	defer other.Close(ctx)

	err = session.Add(ctx,
		[]models.Chunk{
			{ID: "c0", Index: 0, Content: "The capital of France is Paris."},
			{ID: "c1", Index: 1, Content: "The sky is blue."},
		},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	)
	require.NoError(t, err)
	require.NoError(t, other.Add(ctx, []models.Chunk{{ID: "x", Content: "unrelated"}}, [][]float32{{1, 0, 0}}))

	results, err := session.Search(ctx, []float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "The capital of France is Paris.", results[0].Content)

	n, err := session.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, session.Reset(ctx))
	n, err = session.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = other.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
