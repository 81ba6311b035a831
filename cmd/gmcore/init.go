package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sagequill/gm-core/internal/infrastructure/config"
	embedder "github.com/sagequill/gm-core/internal/infrastructure/embedder/openai"
	"github.com/sagequill/gm-core/internal/infrastructure/storage/sqlite"
	"github.com/sagequill/gm-core/internal/infrastructure/vectordb/qdrant"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new game session directory",
		Long:  "Creates a .gmcore directory with default configuration and sets up the session database.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if config.Exists(cwd) {
		return fmt.Errorf("gmcore already initialized in %s", cwd)
	}

	if err := config.Write(cwd, config.Default()); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	fmt.Printf("Created %s\n", config.ConfigFilePath(cwd))

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := sqlite.NewRepository(cfg.SQLite)
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	fmt.Printf("Created session database: %s\n", filepath.Join(config.DefaultConfigDir, config.DefaultDBFile))

	if cfg.Qdrant.Enabled {
		if err := initRecallIndex(ctx, cfg); err != nil {
			return err
		}
		fmt.Printf("Created Qdrant collection: %s\n", cfg.Qdrant.Collection)
	}

	return nil
}

func initRecallIndex(ctx context.Context, cfg *config.Config) error {
	repo, err := qdrant.NewRepository(cfg.Qdrant)
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	defer repo.Close()

	if err := repo.EnsureCollection(ctx, embedder.VectorSize); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}
