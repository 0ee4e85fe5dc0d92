package types

import (
	"context"

	"github.com/xhad/voicerag/internal/models"
)

// Core interfaces
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type Chunker interface {
	Split(text string) ([]string, error)
}

type VectorStore interface {
	Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Search(ctx context.Context, query []float32, limit int) ([]models.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
}

type Answerer interface {
	Answer(ctx context.Context, question string, chunks []models.Chunk) (string, error)
}

// StoreFactory returns a fresh vector store scoped to one session.
type StoreFactory func(sessionID string) (VectorStore, error)
