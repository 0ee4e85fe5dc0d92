package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/voicerag/internal/models"
	"github.com/xhad/voicerag/internal/types"
	cfgPkg "github.com/xhad/voicerag/pkg/config"
	"github.com/xhad/voicerag/pkg/llm"
	"github.com/xhad/voicerag/pkg/processor"
	"github.com/xhad/voicerag/pkg/session"
	"github.com/xhad/voicerag/pkg/store"
	"github.com/xhad/voicerag/pkg/transcriber"
	"github.com/xhad/voicerag/server"
)

type Options struct {
	ConfigPath     string
	Serve          bool
	ShowTranscript bool
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	opts, cfg, err := parseFlags()
	if err != nil {
		fail(err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, color.RedString("config: %v", e))
		}
		os.Exit(1)
	}

	if err := run(opts, cfg, flag.Args()); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	os.Exit(1)
}

func parseFlags() (Options, *cfgPkg.Config, error) {
	var opts Options
	var (
		model        string
		embedModel   string
		ollamaURL    string
		dbURL        string
		chunkSize    int
		chunkOverlap int
		topK         int
		temperature  float64
		addr         string
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <audio-file> [question]\n       %s -serve [flags]\n\n",
			os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file")
	flag.BoolVar(&opts.Serve, "serve", false, "Run the websocket server")
	flag.BoolVar(&opts.ShowTranscript, "show-transcript", false, "Print the transcript after transcription")
	flag.StringVar(&model, "model", "", "Generation model to use")
	flag.StringVar(&embedModel, "embed-model", "", "Embedding model to use")
	flag.StringVar(&ollamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string (pgvector backend)")
	flag.IntVar(&chunkSize, "chunk-size", 500, "Size of transcript chunks in characters")
	flag.IntVar(&chunkOverlap, "chunk-overlap", 100, "Overlap between consecutive chunks")
	flag.IntVar(&topK, "top-k", 4, "Number of chunks retrieved per question")
	flag.Float64Var(&temperature, "temperature", 0.2, "Set the LLM Temperature")
	flag.StringVar(&addr, "addr", ":8080", "Websocket server listen address")
	flag.Parse()

	cfg, err := cfgPkg.LoadConfig(opts.ConfigPath)
	if err != nil {
		return opts, nil, err
	}

	// Command line flags win over the config file when given explicitly
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.LLM.Model = model
		case "embed-model":
			cfg.Embedding.Model = embedModel
		case "ollama-url":
			cfg.Embedding.BaseURL = ollamaURL
			if cfg.LLM.Provider == "ollama" {
				cfg.LLM.BaseURL = ollamaURL
			}
		case "db-url":
			cfg.Database.URL = dbURL
			cfg.Database.Backend = "pgvector"
		case "chunk-size":
			cfg.Processor.ChunkSize = chunkSize
		case "chunk-overlap":
			cfg.Processor.ChunkOverlap = chunkOverlap
		case "top-k":
			cfg.Retriever.TopK = topK
		case "temperature":
			cfg.LLM.Temperature = temperature
		case "addr":
			cfg.Server.Addr = addr
		}
	})

	return opts, cfg, nil
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func buildManager(ctx context.Context, cfg *cfgPkg.Config) (*session.Manager, func(), error) {
	tr, err := transcriber.NewWithConfig(transcriber.TranscriberConfig{
		BaseURL:  cfg.Transcription.BaseURL,
		APIKey:   cfg.Transcription.APIKey,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize transcriber: %w", err)
	}

	chunker, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	answerer, err := llm.NewWithConfig(llm.AnswerConfig{
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		BaseURL:      cfg.LLM.BaseURL,
		APIKey:       cfg.LLM.APIKey,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		HedgePhrases: cfg.LLM.HedgePhrases,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize answer engine: %w", err)
	}

	cleanup := func() {}
	var newStore types.StoreFactory
	if cfg.Database.Backend == "pgvector" {
		vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		newStore = func(sessionID string) (types.VectorStore, error) {
			return vectorStore.Scope(sessionID), nil
		}
		cleanup = vectorStore.Close
	}

	manager, err := session.NewManager(session.ManagerConfig{
		AllowedExtensions: cfg.Transcription.AllowedExtensions,
		TopK:              cfg.Retriever.TopK,
		ScoreThreshold:    cfg.Retriever.ScoreThreshold,
		Accumulate:        cfg.Retriever.Accumulate,
	}, tr, chunker, embedder, answerer, newStore)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return manager, cleanup, nil
}

func run(opts Options, cfg *cfgPkg.Config, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !opts.Serve && len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing audio file")
	}

	manager, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer manager.CloseAll(context.Background())

	switch {
	case opts.Serve:
		ws, err := server.NewWSServer(server.Config{
			Addr:     cfg.Server.Addr,
			AudioDir: cfg.Transcription.AudioDir,
		}, manager)
		if err != nil {
			return err
		}
		return ws.ListenAndServe(ctx)

	case len(args) >= 2:
		return answerOnce(ctx, manager, args[0], strings.Join(args[1:], " "))

	default:
		return chat(ctx, manager, args[0], opts.ShowTranscript)
	}
}

func answerOnce(ctx context.Context, manager *session.Manager, audioPath, question string) error {
	spinner := getSpinner(" Transcribing and answering...")
	answer, err := manager.Run(ctx, audioPath, question)
	spinner.Finish()
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}

func chat(ctx context.Context, manager *session.Manager, audioPath string, showTranscript bool) error {
	sess, err := manager.Create()
	if err != nil {
		return err
	}

	spinner := getSpinner(" Transcribing audio...")
	transcript, err := sess.Upload(ctx, audioPath)
	spinner.Finish()
	if err != nil {
		return err
	}

	chunks, err := sess.ChunkCount(ctx)
	if err != nil {
		return err
	}
	color.Green("✓ Transcription complete (%d chunks indexed)\n", chunks)
	if showTranscript {
		color.Cyan("\nTranscript:")
		fmt.Println(transcript)
	}

	color.Cyan("\nAsk something about the audio (type '/history' to review, '/exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch chatCommand(query) {
		case cmdExit:
			return nil
		case cmdHistory:
			for _, entry := range sess.History() {
				if entry.Role == models.RoleUser {
					userPrompt("You: %s\n", entry.Text)
				} else {
					assistantPrompt("Assistant: %s\n", entry.Text)
				}
			}
			continue
		}

		responseSpinner := getSpinner(" Thinking...")
		answer, err := sess.Ask(ctx, query)
		responseSpinner.Finish()

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}
		assistantPrompt("Assistant: %s\n", answer)
	}

	return scanner.Err()
}

const (
	cmdNone = iota
	cmdHistory
	cmdExit
)

// chatCommand recognises the interactive loop's commands. Anything else,
// including a bare "history", is a question.
func chatCommand(input string) int {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/history":
		return cmdHistory
	case "/exit", "exit", "quit":
		return cmdExit
	}
	return cmdNone
}
