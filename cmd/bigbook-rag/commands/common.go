package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stepstudy/bigbook-rag/internal/core/answer"
	"github.com/stepstudy/bigbook-rag/internal/core/grounding"
	"github.com/stepstudy/bigbook-rag/internal/core/ingest"
	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
	"github.com/stepstudy/bigbook-rag/internal/core/session"
	chromemstore "github.com/stepstudy/bigbook-rag/internal/infra/chromem"
	"github.com/stepstudy/bigbook-rag/internal/infra/fsregistry"
	openaiinfra "github.com/stepstudy/bigbook-rag/internal/infra/openai"
	"github.com/stepstudy/bigbook-rag/internal/infra/postgres"
	"github.com/stepstudy/bigbook-rag/internal/platform/budget"
	"github.com/stepstudy/bigbook-rag/internal/platform/config"
	"github.com/stepstudy/bigbook-rag/internal/platform/logger"
	"github.com/stepstudy/bigbook-rag/pkg/db"
)

// AppContext holds the shared dependencies a command needs.
type AppContext struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    retrieval.Store
	Sessions session.Store
	Registry ingest.Registry
	Embedder *openaiinfra.Embedder
	Chat     *openaiinfra.ChatClient
	Guard    *budget.Guard

	database *db.DB
}

// NewAppContext loads configuration, initializes logging, and wires the
// backend selected by STORE_BACKEND.
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appLogger := logger.New(logger.Config{
		Level:  parseLogLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	appCtx := &AppContext{
		Config: cfg,
		Logger: appLogger,
		Embedder: openaiinfra.NewEmbedder(cfg.OpenAI.APIKey,
			openaiinfra.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openaiinfra.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		),
		Guard: budget.NewGuard(cfg.Budget.LedgerPath, cfg.Budget.DailyLimitUSD, cfg.Budget.PerCallUSD,
			budget.WithGuardLogger(appLogger),
		),
	}

	appCtx.Chat, err = openaiinfra.NewChatClient(cfg.OpenAI.APIKey,
		openaiinfra.WithChatModel(cfg.OpenAI.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		if err := appCtx.wirePostgres(ctx, cfg); err != nil {
			return nil, err
		}
	default:
		if err := appCtx.wireChromem(cfg); err != nil {
			return nil, err
		}
	}

	return appCtx, nil
}

func (ac *AppContext) wirePostgres(ctx context.Context, cfg *config.Config) error {
	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return err
	}
	ac.database = database

	store := postgres.NewStore(database, cfg.OpenAI.EmbeddingDimension)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	sessions := postgres.NewSessionRepository(database)
	if err := sessions.EnsureSchema(ctx); err != nil {
		return err
	}

	registry := postgres.NewIngestRegistry(database)
	if err := registry.EnsureSchema(ctx); err != nil {
		return err
	}

	ac.Store = store
	ac.Sessions = sessions
	ac.Registry = registry
	return nil
}

func (ac *AppContext) wireChromem(cfg *config.Config) error {
	store, err := chromemstore.NewStore(cfg.Store.ChromemPath, cfg.OpenAI.EmbeddingDimension)
	if err != nil {
		return err
	}

	ac.Store = store
	ac.Sessions = session.NewMemoryStore()
	ac.Registry = fsregistry.New(cfg.Store.RegistryDir)
	return nil
}

// Close releases the resources AppContext holds.
func (ac *AppContext) Close() {
	if ac.database != nil {
		ac.database.Close()
	}
}

// AnswerService assembles the answer pipeline from the wired dependencies.
func (ac *AppContext) AnswerService() *answer.Service {
	builder := grounding.NewBuilder(grounding.Budget{
		MaxContextChars:    ac.Config.Retrieval.MaxContextChars,
		MaxQuoteChars:      ac.Config.Retrieval.MaxQuoteChars,
		MaxQuotes:          ac.Config.Retrieval.MaxQuotes,
		MaxTotalQuoteChars: ac.Config.Retrieval.MaxTotalQuoteChars,
	}, grounding.WithBuilderLogger(ac.Logger))

	return answer.NewService(ac.Store, ac.Embedder, ac.Chat, builder,
		answer.WithSessionStore(ac.Sessions),
		answer.WithBudgetGuard(ac.Guard),
		answer.WithTopK(ac.Config.Retrieval.TopK),
		answer.WithTemperature(ac.Config.OpenAI.Temperature),
		answer.WithMaxTokens(ac.Config.OpenAI.MaxTokens),
		answer.WithMaxReplyChars(ac.Config.Retrieval.MaxReplyChars),
		answer.WithAnswerLogger(ac.Logger),
	)
}

// IngestService assembles the ingestion pipeline from the wired dependencies.
func (ac *AppContext) IngestService() *ingest.Service {
	return ingest.NewService(ac.Store, ac.Embedder, ac.Registry,
		ingest.WithChunking(ac.Config.Ingest.MaxChunkChars, ac.Config.Ingest.ChunkOverlap),
		ingest.WithIngestLogger(ac.Logger),
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
