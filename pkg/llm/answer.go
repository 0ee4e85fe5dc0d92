package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"github.com/xhad/voicerag/internal/models"
)

// RefusalMessage is returned whenever the transcript cannot ground an answer.
const RefusalMessage = "I don't know based on the audio."

const defaultTemplate = "Answer ONLY using this audio transcript. " +
	"If the answer is not in the transcript, say: '" + RefusalMessage + "' " +
	"Make the answer a bit long, not super short.\n" +
	"Context:\n{{.context}}\n\nQuestion: {{.question}}\nAnswer:"

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// AnswerConfig represents the configuration for an answer engine.
type AnswerConfig struct {
	Provider     string // "groq", "openai" or "ollama"
	Model        string
	BaseURL      string
	APIKey       string
	Temperature  float64
	MaxTokens    int
	Template     string
	HedgePhrases []string
}

// AnswerEngine answers questions strictly from retrieved transcript chunks.
type AnswerEngine struct {
	config AnswerConfig
	llm    llms.Model
	prompt prompts.PromptTemplate
}

// NewWithConfig creates a new AnswerEngine talking to the configured provider.
func NewWithConfig(config AnswerConfig) (*AnswerEngine, error) {
	if config.Provider == "" {
		config.Provider = "groq"
	}

	var model llms.Model
	switch config.Provider {
	case "groq", "openai":
		if config.APIKey == "" {
			return nil, fmt.Errorf("api key is required for provider %s", config.Provider)
		}
		if config.BaseURL == "" && config.Provider == "groq" {
			config.BaseURL = "https://api.groq.com/openai/v1"
		}
		if config.Model == "" {
			config.Model = "llama-3.1-8b-instant"
		}
		opts := []openai.Option{openai.WithToken(config.APIKey), openai.WithModel(config.Model)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		model = llm
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral" // Default Ollama model
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		llm, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		model = llm
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", config.Provider)
	}

	return New(model, config)
}

// New wraps an existing model.
func New(model llms.Model, config AnswerConfig) (*AnswerEngine, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}
	if config.Template == "" {
		config.Template = defaultTemplate
	}
	if config.HedgePhrases == nil {
		config.HedgePhrases = []string{"I think", "maybe"}
	}

	return &AnswerEngine{
		config: config,
		llm:    model,
		prompt: prompts.NewPromptTemplate(config.Template, []string{"context", "question"}),
	}, nil
}

// Answer asks the model once. Without chunks the model is never called.
func (ae *AnswerEngine) Answer(ctx context.Context, question string, chunks []models.Chunk) (string, error) {
	if len(chunks) == 0 {
		return RefusalMessage, nil
	}

	prompt, err := ae.BuildPrompt(question, chunks)
	if err != nil {
		return "", err
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := ae.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ae.config.Temperature),
		llms.WithMaxTokens(ae.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generation error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 {
		return "", fmt.Errorf("generation error: no choices returned")
	}

	return ae.postProcess(response.Choices[0].Content), nil
}

// BuildPrompt renders the grounding prompt for a question.
func (ae *AnswerEngine) BuildPrompt(question string, chunks []models.Chunk) (string, error) {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}

	prompt, err := ae.prompt.Format(map[string]any{
		"context":  strings.Join(parts, "\n\n"),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return prompt, nil
}

func (ae *AnswerEngine) postProcess(raw string) string {
	answer := Clean(raw)
	if answer == "" || ae.isHedged(answer) {
		return RefusalMessage
	}
	return answer
}

// isHedged flags low-confidence answers by phrase matching.
func (ae *AnswerEngine) isHedged(answer string) bool {
	for _, phrase := range ae.config.HedgePhrases {
		if phrase != "" && strings.Contains(answer, phrase) {
			return true
		}
	}
	return false
}

// Clean strips <think> blocks some reasoning models emit.
func Clean(text string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
}
