package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmiran15/chatmate-ingest/internal/config"
	"github.com/jmiran15/chatmate-ingest/internal/core"
	db "github.com/jmiran15/chatmate-ingest/internal/core/database"
	"github.com/jmiran15/chatmate-ingest/internal/core/ingest"
	"github.com/jmiran15/chatmate-ingest/internal/core/llm"
	"github.com/jmiran15/chatmate-ingest/internal/core/objectstore"
	"github.com/jmiran15/chatmate-ingest/internal/core/retrieval"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/queue"
)

// App owns every long-lived component: database, providers, queue, server.
type App struct {
	Log       *logger.Logger
	DBClient  core.DbClient
	Queue     *queue.Queue
	Retriever *retrieval.Retriever
	Server    *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	log.Info("database initialized and bootstrapped")

	var objClient core.ObjectClient
	if cfg.AwsAccessKey != "" {
		objClient, err = objectstore.NewS3Client(appCtx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("init object client: %w", err)
		}
	} else {
		log.Warn("object storage not configured, storage-backed documents will fail")
	}

	completions, embedder, err := buildProviders(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}

	augmenter := ingest.NewAugmenter(completions, log)
	questions := ingest.NewQuestionGenerator(completions, log)
	qaGen := ingest.NewQAGenerator(completions, log)
	batcher := ingest.NewEmbedBatcher(dbClient, embedder, log)

	ingCfg := ingest.IngestConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.BatchSize,
	}
	docOrch := ingest.NewOrchestrator(dbClient, augmenter, questions, batcher, ingCfg, log)
	qaOrch := ingest.NewQAOrchestrator(dbClient, qaGen, batcher, cfg.BatchSize, log)
	extractor := ingest.NewExtractor(dbClient, objClient, log)

	jobQueue := queue.New(dbClient, extractor, docOrch, qaOrch, cfg.Workers, cfg.QueueDepth, log)
	retriever := retrieval.NewRetriever(dbClient, embedder, completions, log)

	server := NewServer(cfg, dbClient, jobQueue, retriever, log)

	return &App{
		Log:       log,
		DBClient:  dbClient,
		Queue:     jobQueue,
		Retriever: retriever,
		Server:    server,
	}, nil
}

// buildProviders assembles the completion fallback chain and the embedding
// provider. Groq, when configured, runs first under its free-tier budget and
// falls through to the primary provider when the budget is exhausted.
func buildProviders(ctx context.Context, cfg *config.Config, log *logger.Logger) (core.CompletionProvider, core.EmbeddingProvider, error) {
	var primary llm.ChainProvider
	var embedder core.EmbeddingProvider

	switch cfg.Provider {
	case "gemini":
		gem, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbedModel)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini: %w", err)
		}
		primary = llm.Named{ProviderName: "gemini", Provider: gem}
		embedder = gem
	default:
		oai, err := llm.NewOpenAIProvider(llm.OpenAIOptions{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			ChatModel:  cfg.ChatModel,
			EmbedModel: cfg.EmbedModel,
			EmbedDim:   cfg.EmbedDim,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init openai: %w", err)
		}
		primary = llm.Named{ProviderName: "openai", Provider: oai}
		embedder = oai
	}

	if cfg.GroqAPIKey == "" {
		return llm.NewChain(log, primary), embedder, nil
	}

	budget := llm.NewBudget(cfg.GroqRequestsPerMinute, cfg.GroqRequestsPerDay, cfg.GroqTokensPerMinute, cfg.GroqTokensPerDay)
	groq, err := llm.NewGroqProvider(llm.OpenAIOptions{
		APIKey:    cfg.GroqAPIKey,
		BaseURL:   cfg.GroqBaseURL,
		ChatModel: cfg.GroqModel,
	}, budget, log)
	if err != nil {
		return nil, nil, fmt.Errorf("init groq: %w", err)
	}
	return llm.NewChain(log, groq, primary), embedder, nil
}

func (a *App) Close() {
	if closer, ok := a.DBClient.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	a.Log.Sync()
}
