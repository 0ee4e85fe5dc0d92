package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultGroqURL   = "https://api.groq.com/openai/v1"
	DefaultOllamaURL = "http://localhost:11434"
)

type Config struct {
	Transcription struct {
		BaseURL           string   `yaml:"base_url"`
		APIKey            string   `yaml:"api_key"`
		Model             string   `yaml:"model"`
		Language          string   `yaml:"language"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
		AudioDir          string   `yaml:"audio_dir"`
	} `yaml:"transcription"`

	LLM struct {
		Provider     string   `yaml:"provider"`
		BaseURL      string   `yaml:"base_url"`
		APIKey       string   `yaml:"api_key"`
		Model        string   `yaml:"model"`
		MaxTokens    int      `yaml:"max_tokens"`
		Temperature  float64  `yaml:"temperature"`
		HedgePhrases []string `yaml:"hedge_phrases"`
	} `yaml:"llm"`

	Embedding struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		Model     string `yaml:"model"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embedding"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Retriever struct {
		TopK           int     `yaml:"top_k"`
		ScoreThreshold float32 `yaml:"score_threshold"`
		Accumulate     bool    `yaml:"accumulate"`
	} `yaml:"retriever"`

	Database struct {
		Backend   string `yaml:"backend"`
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/voicerag/config.yaml"),
			"/etc/voicerag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

// newConfig presets the fields where zero is a valid setting, so the file
// can still choose zero explicitly.
func newConfig() *Config {
	config := &Config{}
	config.LLM.Temperature = 0.2
	config.Processor.ChunkOverlap = 100
	return config
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Transcription.BaseURL == "" {
		config.Transcription.BaseURL = DefaultGroqURL
	}
	if config.Transcription.Model == "" {
		config.Transcription.Model = "whisper-large-v3"
	}
	if len(config.Transcription.AllowedExtensions) == 0 {
		config.Transcription.AllowedExtensions = []string{".mp3", ".wav"}
	}
	if config.Transcription.AudioDir == "" {
		config.Transcription.AudioDir = "audios"
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = "groq"
	}
	if config.LLM.BaseURL == "" {
		switch config.LLM.Provider {
		case "groq":
			config.LLM.BaseURL = DefaultGroqURL
		case "ollama":
			config.LLM.BaseURL = DefaultOllamaURL
		}
	}
	if config.LLM.APIKey == "" && config.LLM.Provider == "groq" {
		config.LLM.APIKey = config.Transcription.APIKey
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "ollama":
			config.LLM.Model = "mistral"
		case "openai":
			config.LLM.Model = "gpt-4o-mini"
		default:
			config.LLM.Model = "llama-3.1-8b-instant"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1024
	}
	if len(config.LLM.HedgePhrases) == 0 {
		config.LLM.HedgePhrases = []string{"I think", "maybe"}
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "ollama"
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == "ollama" {
		config.Embedding.BaseURL = DefaultOllamaURL
	}
	if config.Embedding.Model == "" {
		if config.Embedding.Provider == "openai" {
			config.Embedding.Model = "text-embedding-3-small"
		} else {
			config.Embedding.Model = "all-minilm"
		}
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 64
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 500
	}

	if config.Retriever.TopK == 0 {
		config.Retriever.TopK = 4
	}

	if config.Database.Backend == "" {
		config.Database.Backend = "memory"
	}
	if config.Database.TableName == "" {
		config.Database.TableName = "transcript_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 384
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		config.Transcription.APIKey = key
		if config.LLM.Provider == "" || config.LLM.Provider == "groq" {
			config.LLM.APIKey = key
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if config.LLM.Provider == "openai" {
			config.LLM.APIKey = key
		}
		if config.Embedding.Provider == "openai" {
			config.Embedding.APIKey = key
		}
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.Embedding.Provider == "" || config.Embedding.Provider == "ollama" {
			config.Embedding.BaseURL = baseURL
		}
		if config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}
