package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/xhad/voicerag/internal/types"
	"github.com/xhad/voicerag/pkg/retriever"
	"github.com/xhad/voicerag/pkg/store"
)

type ManagerConfig struct {
	AllowedExtensions []string
	TopK              int
	ScoreThreshold    float32
	Accumulate        bool // keep chunks from earlier uploads in the index
}

// Manager creates sessions and owns every session's state, keyed by id.
type Manager struct {
	config      ManagerConfig
	transcriber types.Transcriber
	chunker     types.Chunker
	embedder    embeddings.Embedder
	answerer    types.Answerer
	newStore    types.StoreFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires the pipeline components. A nil store factory gives each
// session its own in-memory index.
func NewManager(
	config ManagerConfig,
	transcriber types.Transcriber,
	chunker types.Chunker,
	embedder embeddings.Embedder,
	answerer types.Answerer,
	newStore types.StoreFactory,
) (*Manager, error) {
	if transcriber == nil || chunker == nil || embedder == nil || answerer == nil {
		return nil, fmt.Errorf("transcriber, chunker, embedder and answerer are required")
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".mp3", ".wav"}
	}
	if newStore == nil {
		newStore = func(string) (types.VectorStore, error) {
			return store.NewMemoryStore(), nil
		}
	}

	return &Manager{
		config:      config,
		transcriber: transcriber,
		chunker:     chunker,
		embedder:    embedder,
		answerer:    answerer,
		newStore:    newStore,
		sessions:    make(map[string]*Session),
	}, nil
}

// Create starts an empty session in the "no transcript yet" state.
func (m *Manager) Create() (*Session, error) {
	id := uuid.NewString()

	vs, err := m.newStore(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	r, err := retriever.NewWithConfig(retriever.RetrieverConfig{
		TopK:           m.config.TopK,
		ScoreThreshold: m.config.ScoreThreshold,
	}, m.embedder, vs)
	if err != nil {
		return nil, err
	}

	s := &Session{ID: id, deps: m, retriever: r}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close forgets the session and releases its index.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.close(ctx)
}

func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run is the single-shot pipeline: transcribe the audio, then answer one
// question about it. Missing audio or a blank question returns the guidance
// message without calling any service.
func (m *Manager) Run(ctx context.Context, audioPath, question string) (string, error) {
	if strings.TrimSpace(audioPath) == "" || strings.TrimSpace(question) == "" {
		return GuidanceMessage, nil
	}

	s, err := m.Create()
	if err != nil {
		return "", err
	}
	// Release the index even when ctx is already cancelled.
	defer func() {
		if err := m.Close(context.Background(), s.ID); err != nil {
			log.Printf("Error closing session %s: %v", s.ID, err)
		}
	}()

	if _, err := s.Upload(ctx, audioPath); err != nil {
		return "", err
	}
	return s.Ask(ctx, question)
}

// Allowed reports whether the file extension is an accepted audio format.
func (m *Manager) Allowed(audioPath string) bool {
	ext := strings.ToLower(filepath.Ext(audioPath))
	for _, allowed := range m.config.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}
