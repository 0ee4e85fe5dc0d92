package processor

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Processor splits transcripts into overlapping chunks, preferring paragraph,
// line and word boundaries before falling back to single characters.
type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.RecursiveCharacter
}

// NewWithConfig builds a Processor. A zero ChunkSize selects the 500/100
// defaults; with an explicit size, a zero overlap means no overlap.
func NewWithConfig(config ProcessorConfig) (Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 500
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = 100
		}
	}
	if len(config.Separators) == 0 {
		config.Separators = []string{"\n\n", "\n", " ", ""}
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return Processor{}, fmt.Errorf("chunk overlap %d must be non-negative and less than chunk size %d",
			config.ChunkOverlap, config.ChunkSize)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
		textsplitter.WithSeparators(config.Separators),
	)

	return Processor{
		config:   config,
		splitter: splitter,
	}, nil
}

// Split returns the ordered chunks of text. Blank input yields no chunks.
func (p Processor) Split(text string) ([]string, error) {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil, nil
	}

	parts, err := p.splitter.SplitText(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to split transcript: %w", err)
	}

	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks, nil
}

// cleanText collapses runs of spaces and tabs while keeping line breaks,
// which the splitter uses as boundaries.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
