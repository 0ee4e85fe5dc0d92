package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"
)

// TranscriberConfig represents the configuration for a speech-to-text client.
type TranscriberConfig struct {
	BaseURL  string // OpenAI-compatible API root, e.g. https://api.groq.com/openai/v1
	APIKey   string
	Model    string
	Language string
}

// Transcriber sends recorded audio to a hosted speech-to-text service.
type Transcriber struct {
	config TranscriberConfig
	client *openai.Client
}

// NewWithConfig creates a new Transcriber with the given configuration.
func NewWithConfig(config TranscriberConfig) (*Transcriber, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("transcription api key is required")
	}
	if config.Model == "" {
		config.Model = "whisper-large-v3"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.groq.com/openai/v1"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL

	return &Transcriber{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Transcribe reads the audio file and returns the recognized text. The file
// extension tells the service which format it is receiving.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.config.Model,
		FilePath: filepath.Base(audioPath),
		Reader:   bytes.NewReader(data),
		Language: t.config.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	return resp.Text, nil
}
