package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xhad/voicerag/internal/models"
	"github.com/xhad/voicerag/pkg/retriever"
)

// GuidanceMessage is returned instead of running the pipeline when there is
// no audio or no question to work with.
const GuidanceMessage = "Upload audio and ask a question."

var (
	ErrNoAudio          = errors.New("no audio file provided")
	ErrUnsupportedAudio = errors.New("unsupported audio format")
	ErrSessionNotFound  = errors.New("session not found")
)

// Session holds one user's transcript, vector index and conversation log.
// Actions on a session run one at a time.
type Session struct {
	ID string

	mu         sync.Mutex
	deps       *Manager
	retriever  *retriever.Retriever
	transcript string
	ready      bool
	history    []models.ConversationEntry
}

// Upload transcribes the audio file, replaces the active transcript and
// indexes its chunks. Unless the manager accumulates, previous chunks are
// dropped first.
func (s *Session) Upload(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", ErrNoAudio
	}
	if !s.deps.Allowed(audioPath) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAudio, filepath.Ext(audioPath))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	transcript, err := s.deps.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return "", err
	}

	chunks, err := s.deps.chunker.Split(transcript)
	if err != nil {
		return "", err
	}

	if !s.deps.config.Accumulate {
		if err := s.retriever.Reset(ctx); err != nil {
			return "", fmt.Errorf("failed to reset index: %w", err)
		}
		// The old transcript no longer matches the index.
		s.transcript = ""
		s.ready = false
	}
	if err := s.retriever.Index(ctx, chunks); err != nil {
		return "", err
	}

	s.transcript = transcript
	s.ready = true
	return transcript, nil
}

// Ask answers a question from the indexed transcript and records the turn.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return GuidanceMessage, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return GuidanceMessage, nil
	}

	chunks, err := s.retriever.Search(ctx, question)
	if err != nil {
		return "", err
	}

	answer, err := s.deps.answerer.Answer(ctx, question, chunks)
	if err != nil {
		return "", err
	}

	s.history = append(s.history,
		models.ConversationEntry{Role: models.RoleUser, Text: question},
		models.ConversationEntry{Role: models.RoleAssistant, Text: answer},
	)
	return answer, nil
}

// History returns a copy of the conversation log, oldest first.
func (s *Session) History() []models.ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ConversationEntry(nil), s.history...)
}

func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// Ready reports whether a transcript has been loaded.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// ChunkCount reports how many chunks the session's index holds.
func (s *Session) ChunkCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retriever.Count(ctx)
}

func (s *Session) close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retriever.Close(ctx)
}
