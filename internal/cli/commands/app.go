// Package commands implements the jargonrag command line.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/config"
	"github.com/danielbwilkinson/jargon-rag/internal/database"
	"github.com/danielbwilkinson/jargon-rag/internal/graph"
	"github.com/danielbwilkinson/jargon-rag/internal/logging"
	"github.com/danielbwilkinson/jargon-rag/internal/openai"
	"github.com/danielbwilkinson/jargon-rag/internal/repository"
	"github.com/danielbwilkinson/jargon-rag/internal/service"
	"github.com/danielbwilkinson/jargon-rag/internal/storage"
	"github.com/danielbwilkinson/jargon-rag/internal/telemetry"
	"github.com/danielbwilkinson/jargon-rag/internal/tokenizer"
	"github.com/danielbwilkinson/jargon-rag/internal/vault"
)

// noteGraph is a store usable for both querying and ingestion.
type noteGraph interface {
	service.NoteStore
	service.NoteWriter
}

// app holds the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	graph    noteGraph
	llm      *openai.Client
	tokens   service.TokenCounter
	pipeline *service.Pipeline
	closers  []func()
}

type appOptions struct {
	// migrate applies the Postgres schema before use
	migrate bool
}

// newApp loads configuration and connects to the graph store and the
// model endpoint.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}

	logger := logging.New(logging.Options{Debug: cfg.Debug, FilePath: cfg.LogFile})
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	flush := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate(cfg.Environment),
		Debug:            cfg.Debug,
	}, logger)
	a.closers = append(a.closers, flush)

	g, closeGraph, err := openGraph(ctx, cfg, logger, opts.migrate)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.graph = g
	a.closers = append(a.closers, closeGraph)

	a.llm = openai.NewClient(openai.Config{
		BaseURL:             cfg.LLMBaseURL,
		APIKey:              cfg.LLMAPIKey,
		Model:               cfg.Model,
		EmbeddingModel:      cfg.EmbeddingModelName(),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	a.tokens = tokenizer.NewWithFallback(cfg.Tokenizer, logger)
	a.pipeline = service.NewPipeline(a.graph, a.llm, a.llm, a.tokens, pipelineConfig(cfg), logger)

	logger.Debug("ready",
		zap.String("backend", cfg.GraphBackend),
		zap.String("model", cfg.Model),
		zap.String("embedding_model", cfg.EmbeddingModelName()),
		zap.Int("context_window", cfg.ContextWindow))

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func pipelineConfig(cfg *config.Config) service.PipelineConfig {
	return service.PipelineConfig{
		Retriever: service.RetrieverConfig{
			SemanticTopK: cfg.SemanticTopK,
			JargonTopK:   cfg.JargonTopK,
		},
		JargonThreshold:      cfg.JargonThreshold,
		FilterAttempts:       cfg.FilterAttempts,
		ContextWindow:        cfg.ContextWindow,
		PromptOverheadTokens: cfg.PromptOverheadTokens,
	}
}

// sampleRate traces everything in development and a tenth elsewhere.
func sampleRate(environment string) float64 {
	if environment == "" || environment == "development" {
		return 1.0
	}
	return 0.1
}

func openGraph(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) (noteGraph, func(), error) {
	if cfg.UsesPostgres() {
		if migrate {
			if err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, nil, err
		}

		repo, err := repository.NewNoteRepository(pool, cfg.Index)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Debug("connected to postgres")
		return repo, pool.Close, nil
	}

	store, err := graph.Open(ctx, graph.Config{
		URI:      cfg.Neo4jURI,
		User:     cfg.Neo4jUser,
		Password: cfg.Neo4jPass,
		Database: cfg.Neo4jDatabase,
		Index:    cfg.Index,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("connected to neo4j", zap.String("uri", cfg.Neo4jURI))
	return store, func() { _ = store.Close(context.Background()) }, nil
}

// vaultSource prefers a directory given on the command line, then S3, then
// the configured directory.
func vaultSource(ctx context.Context, cfg *config.Config, dir string) (service.VaultSource, error) {
	if dir != "" {
		return vault.NewOSDirSource(dir), nil
	}

	if cfg.HasS3() {
		src, err := storage.NewS3Source(ctx, storage.S3SourceConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.VaultS3Bucket,
			Prefix:          cfg.VaultS3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 vault source: %w", err)
		}
		return src, nil
	}

	if cfg.HasVaultDir() {
		return vault.NewOSDirSource(cfg.VaultDir), nil
	}

	return nil, fmt.Errorf("no vault configured: pass --vault or set JARGONRAG_VAULT_DIR or JARGONRAG_VAULT_S3_BUCKET")
}
