package transcriber_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/voicerag/pkg/transcriber"
)

func writeAudio(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestNewWithConfigRequiresKey(t *testing.T) {
	_, err := transcriber.NewWithConfig(transcriber.TranscriberConfig{})
	assert.Error(t, err)
}

func TestTranscribe(t *testing.T) {
	var gotModel, gotFilename, gotAuth string
	var gotAudio []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		gotAudio, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "The capital of France is Paris."})
	}))
	defer srv.Close()

	tr, err := transcriber.NewWithConfig(transcriber.TranscriberConfig{
		BaseURL: srv.URL + "/openai/v1",
		APIKey:  "gsk_test",
	})
	require.NoError(t, err)

	path := writeAudio(t, "lecture.mp3", []byte("ID3fake-audio"))

	text, err := tr.Transcribe(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "The capital of France is Paris.", text)
	assert.Equal(t, "whisper-large-v3", gotModel)
	assert.Equal(t, "lecture.mp3", gotFilename)
	assert.Equal(t, []byte("ID3fake-audio"), gotAudio)
	assert.Equal(t, "Bearer gsk_test", gotAuth)
}

func TestTranscribeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	tr, err := transcriber.NewWithConfig(transcriber.TranscriberConfig{
		BaseURL: srv.URL,
		APIKey:  "bad",
	})
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), writeAudio(t, "clip.wav", []byte("RIFF")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription failed")
}

func TestTranscribeMissingFile(t *testing.T) {
	tr, err := transcriber.NewWithConfig(transcriber.TranscriberConfig{APIKey: "gsk_test"})
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}
