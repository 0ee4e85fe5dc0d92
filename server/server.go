package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/voicerag/pkg/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the JSON frame exchanged over /ws.
//
// Client frames: "upload" (Filename + Audio), "question" (Content),
// "history", "transcript". Server frames: "session", "status",
// "transcript", "answer", "history", "error".
type Message struct {
	Type     string      `json:"type"`
	Content  string      `json:"content,omitempty"`
	Filename string      `json:"filename,omitempty"`
	Audio    []byte      `json:"audio,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

type Config struct {
	Addr     string
	AudioDir string
}

type WSServer struct {
	config   Config
	sessions *session.Manager
}

func NewWSServer(config Config, sessions *session.Manager) (*WSServer, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if config.AudioDir == "" {
		config.AudioDir = "audios"
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}

	if err := os.MkdirAll(config.AudioDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	return &WSServer{
		config:   config,
		sessions: sessions,
	}, nil
}

// Handler returns the HTTP routes served by the websocket server.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting WebSocket server on %s", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return s.sessions.CloseAll(shutdownCtx)
	}
}

// Each connection owns one session. Frames are handled in order, so a
// question never races the upload before it.
func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess, err := s.sessions.Create()
	if err != nil {
		s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("Failed to create session: %v", err)})
		return
	}
	defer func() {
		if err := s.sessions.Close(context.Background(), sess.ID); err != nil {
			log.Printf("Error closing session %s: %v", sess.ID, err)
		}
	}()

	s.sendMessage(conn, Message{Type: "session", Content: sess.ID})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			s.sendMessage(conn, Message{Type: "error", Content: "invalid message"})
			continue
		}

		s.handleMessage(r.Context(), conn, sess, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, sess *session.Session, msg Message) {
	switch msg.Type {
	case "upload":
		if len(msg.Audio) == 0 {
			s.sendMessage(conn, Message{Type: "status", Content: session.GuidanceMessage})
			return
		}

		if !s.sessions.Allowed(msg.Filename) {
			err := fmt.Errorf("%w: %s", session.ErrUnsupportedAudio, filepath.Ext(msg.Filename))
			s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("Error: %v", err)})
			return
		}

		path, err := s.saveAudio(sess.ID, msg.Filename, msg.Audio)
		if err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
			return
		}

		s.sendMessage(conn, Message{Type: "status", Content: "Transcribing audio..."})
		transcript, err := sess.Upload(ctx, path)
		if err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("Error: %v", err)})
			return
		}
		s.sendMessage(conn, Message{Type: "transcript", Content: transcript})

	case "question":
		answer, err := sess.Ask(ctx, msg.Content)
		if err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("Error: %v", err)})
			return
		}
		s.sendMessage(conn, Message{Type: "answer", Content: answer})

	case "history":
		s.sendMessage(conn, Message{Type: "history", Data: sess.History()})

	case "transcript":
		s.sendMessage(conn, Message{Type: "transcript", Content: sess.Transcript()})

	default:
		s.sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("unknown message type: %q", msg.Type)})
	}
}

// saveAudio writes the upload into the audio directory. Only the base name
// of the client filename is kept, prefixed with the session id.
func (s *WSServer) saveAudio(sessionID, filename string, audio []byte) (string, error) {
	base := filepath.Base(filepath.Clean("/" + filename))
	if base == "/" || base == "." {
		return "", fmt.Errorf("missing audio filename")
	}

	path := filepath.Join(s.config.AudioDir, sessionID+"-"+base)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to save audio: %w", err)
	}
	return path, nil
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
