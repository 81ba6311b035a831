package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/ports"
	"github.com/sagequill/gm-core/internal/domain/services"
	"github.com/sagequill/gm-core/internal/infrastructure/config"
	embedder "github.com/sagequill/gm-core/internal/infrastructure/embedder/openai"
	llm "github.com/sagequill/gm-core/internal/infrastructure/llm/openai"
	"github.com/sagequill/gm-core/internal/infrastructure/storage/sqlite"
	"github.com/sagequill/gm-core/internal/infrastructure/vectordb/qdrant"
)

// Deps holds the fully wired session and its collaborators for commands.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   *sqlite.Repository
	Session *services.Session
}

// withDeps loads config, wires the decision pipeline, and calls the provided
// function. It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is harmless

	store, err := sqlite.NewRepository(cfg.SQLite)
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	session, cleanup, err := buildSession(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(&Deps{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Session: session,
	})
}

// buildSession wires the decision pipeline from configuration. The language
// model and the recall index are optional: without an API key the session
// runs in template mode, and without Qdrant recall is skipped.
func buildSession(ctx context.Context, cfg *config.Config, store *sqlite.Repository, logger *zap.Logger) (*services.Session, func(), error) {
	cleanup := func() {}

	var llmClient ports.LLMClient
	var summarizer ports.Summarizer
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(cfg.LLM)
		if err != nil {
			return nil, cleanup, fmt.Errorf("creating llm client: %w", err)
		}
		llmClient = client
		summarizer = client
	}

	mode := entities.GenerationMode(cfg.Engine.GenerationMode)
	if llmClient == nil && mode != entities.ModeTemplate {
		logger.Warn("no llm api key configured, falling back to template mode")
		mode = entities.ModeTemplate
	}

	factOpts := []services.FactServiceOption{services.WithStore(store)}
	var recall *services.RecallService
	if cfg.Qdrant.Enabled && cfg.Embedder.APIKey != "" {
		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return nil, cleanup, fmt.Errorf("creating embedder: %w", err)
		}
		vdb, err := qdrant.NewRepository(cfg.Qdrant)
		if err != nil {
			return nil, cleanup, fmt.Errorf("creating qdrant repository: %w", err)
		}
		cleanup = func() { vdb.Close() } //nolint:errcheck // best-effort close
		factOpts = append(factOpts, services.WithRecallIndex(vdb, emb))
		recall = services.NewRecallService(emb, vdb, logger)
	}

	facts := services.NewFactService(logger, factOpts...)
	persisted, err := store.ListFacts(ctx, true)
	if err != nil {
		return nil, cleanup, fmt.Errorf("loading persisted facts: %w", err)
	}
	facts.Restore(persisted)

	gate := services.NewQualityGate(services.QualityConfig{
		MinOptions: cfg.Engine.MinOptions,
		MaxOptions: cfg.Engine.MaxOptions,
	})
	generator, err := services.NewGenerator(services.GeneratorConfig{
		Mode:       mode,
		Timeout:    cfg.Engine.GenerationTimeout,
		MinOptions: cfg.Engine.MinOptions,
		MaxOptions: cfg.Engine.MaxOptions,
	}, llmClient, gate, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("creating generator: %w", err)
	}

	session := services.NewSession(
		services.SessionConfig{TokenBudget: cfg.Engine.TokenBudget},
		facts,
		services.NewExtractor(),
		services.NewAssembler(services.NewScorer(), summarizer, services.DefaultTokenEstimator, logger),
		services.NewDetector(services.DetectorConfig{
			Threshold:           cfg.Engine.RelevanceThreshold,
			MinDecisionInterval: cfg.Engine.MinDecisionInterval,
		}),
		generator,
		services.NewHistory(store, logger),
		recall,
		logger,
	)
	return session, cleanup, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
