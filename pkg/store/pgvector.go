package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/voicerag/internal/models"
	"github.com/xhad/voicerag/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PgVectorStore owns the connection pool and schema. Each session works on
// its own rows through Scope; rows are deleted when the session closes, so
// nothing outlives the process.
type PgVectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*PgVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "transcript_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 384 // all-minilm
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PgVectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PgVectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE UNLOGGED TABLE IF NOT EXISTS %s (
			session_id TEXT NOT NULL,
			id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			PRIMARY KEY (session_id, id)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_session_idx ON %s (session_id)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Scope returns a vector store restricted to one session's rows.
func (vs *PgVectorStore) Scope(sessionID string) types.VectorStore {
	return &sessionStore{parent: vs, sessionID: sessionID}
}

func (vs *PgVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

type sessionStore struct {
	parent    *PgVectorStore
	sessionID string
}

func (s *sessionStore) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (session_id, id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		s.parent.config.TableName)

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		if len(vectors[i]) != s.parent.config.VectorDim {
			return fmt.Errorf("vector dimension %d does not match table dimension %d",
				len(vectors[i]), s.parent.config.VectorDim)
		}
		batch.Queue(stmt,
			s.sessionID,
			chunk.ID,
			chunk.Index,
			sanitizeUTF8(chunk.Content),
			pgvector.NewVector(vectors[i]),
		)
	}

	tx, err := s.parent.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *sessionStore) Search(ctx context.Context, query []float32, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := fmt.Sprintf(`
		SELECT id, chunk_index, content, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE session_id = $2
		ORDER BY embedding <=> $1, chunk_index
		LIMIT $3`,
		s.parent.config.TableName)

	rows, err := s.parent.pool.Query(ctx, q, pgvector.NewVector(query), s.sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var r models.ScoredChunk
		var score float64
		if err := rows.Scan(&r.ID, &r.Index, &r.Content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Score = float32(score)
		results = append(results, r)
	}

	return results, rows.Err()
}

func (s *sessionStore) Count(ctx context.Context) (int, error) {
	var n int
	q := fmt.Sprintf(`SELECT count(*) FROM %s WHERE session_id = $1`, s.parent.config.TableName)
	if err := s.parent.pool.QueryRow(ctx, q, s.sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *sessionStore) Reset(ctx context.Context) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, s.parent.config.TableName)
	if _, err := s.parent.pool.Exec(ctx, q, s.sessionID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *sessionStore) Close(ctx context.Context) error {
	return s.Reset(ctx)
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
