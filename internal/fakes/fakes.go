// Package fakes provides deterministic stand-ins for the hosted services so
// the pipeline can be exercised without network access.
package fakes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

const refusal = "I don't know based on the audio."

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "by": true,
	"for": true, "from": true, "has": true, "he": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "what": true, "who": true, "how": true, "does": true, "did": true, "do": true,
}

// Keywords lowercases text and drops punctuation and stopwords.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// Embedder maps each distinct keyword to its own dimension, so vectors are
// bag-of-words counts and unrelated texts score exactly zero.
type Embedder struct {
	Dim int
	Err error

	calls atomic.Int32
	mu    sync.Mutex
	vocab map[string]int
}

func (e *Embedder) Calls() int { return int(e.calls.Load()) }

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = e.vector(t)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	return e.vector(text), nil
}

func (e *Embedder) vector(text string) []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	dim := e.Dim
	if dim == 0 {
		dim = 1024
	}
	if e.vocab == nil {
		e.vocab = make(map[string]int)
	}

	v := make([]float32, dim)
	for _, word := range Keywords(text) {
		idx, ok := e.vocab[word]
		if !ok {
			idx = len(e.vocab)
			e.vocab[word] = idx
		}
		v[idx%dim]++
	}
	return v
}

// Model answers from the context section of the prompt: it returns the first
// context sentence sharing a keyword with the question, or the refusal.
// Reply, when set, replaces that behavior.
type Model struct {
	Reply func(prompt string) string
	Err   error

	mu      sync.Mutex
	prompts []string
}

func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *Model) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var b strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				b.WriteString(text.Text)
			}
		}
	}
	prompt := b.String()

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	reply := grounded(prompt)
	if m.Reply != nil {
		reply = m.Reply(prompt)
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply, StopReason: "stop"}},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func grounded(prompt string) string {
	transcript := section(prompt, "Context:\n", "\n\nQuestion: ")
	question := section(prompt, "Question: ", "\nAnswer:")

	wanted := map[string]bool{}
	for _, k := range Keywords(question) {
		wanted[k] = true
	}

	for _, sentence := range strings.SplitAfter(transcript, ".") {
		for _, k := range Keywords(sentence) {
			if wanted[k] {
				return "According to the recording, " + strings.TrimSpace(sentence)
			}
		}
	}
	return refusal
}

func section(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	if j := strings.Index(s, end); j >= 0 {
		s = s[:j]
	}
	return s
}

// Transcriber returns canned transcripts keyed by path suffix, falling back
// to Text.
type Transcriber struct {
	Text     string
	BySuffix map[string]string
	Err      error

	mu    sync.Mutex
	paths []string
}

var ErrTranscription = errors.New("fake transcription failure")

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	t.mu.Lock()
	t.paths = append(t.paths, audioPath)
	t.mu.Unlock()

	if t.Err != nil {
		return "", t.Err
	}
	for suffix, text := range t.BySuffix {
		if strings.HasSuffix(audioPath, suffix) {
			return text, nil
		}
	}
	return t.Text, nil
}

func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.paths)
}

func (t *Transcriber) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}
