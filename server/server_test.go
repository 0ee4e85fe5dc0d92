package server_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/voicerag/internal/fakes"
	"github.com/xhad/voicerag/pkg/llm"
	"github.com/xhad/voicerag/pkg/processor"
	"github.com/xhad/voicerag/pkg/session"
	"github.com/xhad/voicerag/server"
)

type testServer struct {
	http        *httptest.Server
	manager     *session.Manager
	transcriber *fakes.Transcriber
	audioDir    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	chunker, err := processor.NewWithConfig(processor.ProcessorConfig{})
	require.NoError(t, err)
	answerer, err := llm.New(&fakes.Model{}, llm.AnswerConfig{})
	require.NoError(t, err)

	tr := &fakes.Transcriber{Text: "The capital of France is Paris."}
	manager, err := session.NewManager(session.ManagerConfig{}, tr, chunker, &fakes.Embedder{}, answerer, nil)
	require.NoError(t, err)

	audioDir := filepath.Join(t.TempDir(), "audios")
	ws, err := server.NewWSServer(server.Config{AudioDir: audioDir}, manager)
	require.NoError(t, err)

	srv := httptest.NewServer(ws.Handler())
	t.Cleanup(srv.Close)

	return &testServer{http: srv, manager: manager, transcriber: tr, audioDir: audioDir}
}

func (ts *testServer) dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	hello := read(t, conn)
	require.Equal(t, "session", hello.Type)
	require.NotEmpty(t, hello.Content)
	return conn, hello.Content
}

func read(t *testing.T, conn *websocket.Conn) server.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg server.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil skips status frames.
func readUntil(t *testing.T, conn *websocket.Conn, types ...string) server.Message {
	t.Helper()
	for {
		msg := read(t, conn)
		for _, typ := range types {
			if msg.Type == typ {
				return msg
			}
		}
		require.Equal(t, "status", msg.Type, "unexpected frame: %+v", msg)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadAndAsk(t *testing.T) {
	ts := newTestServer(t)
	conn, id := ts.dial(t)

	require.NoError(t, conn.WriteJSON(server.Message{
		Type:     "upload",
		Filename: "../../geo.mp3",
		Audio:    []byte("ID3fake"),
	}))
	transcript := readUntil(t, conn, "transcript", "error")
	require.Equal(t, "transcript", transcript.Type, transcript.Content)
	assert.Equal(t, "The capital of France is Paris.", transcript.Content)

	saved := filepath.Join(ts.audioDir, id+"-geo.mp3")
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3fake"), data)
	assert.Equal(t, []string{saved}, ts.transcriber.Paths())

	require.NoError(t, conn.WriteJSON(server.Message{Type: "question", Content: "What is the capital of France?"}))
	answer := readUntil(t, conn, "answer", "error")
	require.Equal(t, "answer", answer.Type, answer.Content)
	assert.Contains(t, answer.Content, "Paris")

	require.NoError(t, conn.WriteJSON(server.Message{Type: "history"}))
	history := readUntil(t, conn, "history")
	entries, ok := history.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 2)
}

func TestQuestionBeforeUpload(t *testing.T) {
	ts := newTestServer(t)
	conn, _ := ts.dial(t)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "question", Content: "Hello?"}))
	answer := readUntil(t, conn, "answer")
	assert.Equal(t, session.GuidanceMessage, answer.Content)
	assert.Zero(t, ts.transcriber.Calls())
}

func TestUnsupportedUpload(t *testing.T) {
	ts := newTestServer(t)
	conn, _ := ts.dial(t)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "upload", Filename: "notes.txt", Audio: []byte("hi")}))
	msg := readUntil(t, conn, "error", "transcript")
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Content, "unsupported audio format")

	files, err := os.ReadDir(ts.audioDir)
	require.NoError(t, err)
	assert.Empty(t, files, "rejected upload written to disk")
	assert.Zero(t, ts.transcriber.Calls())
}

func TestUnknownMessage(t *testing.T) {
	ts := newTestServer(t)
	conn, _ := ts.dial(t)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "dance"}))
	msg := readUntil(t, conn, "error")
	assert.Contains(t, msg.Content, "dance")
}

func TestSessionClosedOnDisconnect(t *testing.T) {
	ts := newTestServer(t)
	conn, id := ts.dial(t)

	_, err := ts.manager.Get(id)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool {
		_, err := ts.manager.Get(id)
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}
