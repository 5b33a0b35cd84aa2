package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/grapic/facematch/internal/config"
	"github.com/grapic/facematch/internal/facestore/postgres"
	"github.com/grapic/facematch/internal/index"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector indexes",
	Long: `Rebuild the durable ivfflat index with a partition count tuned to the
current data volume, and warm the per-event in-memory graphs. Run after
bulk ingests; normal operation retunes lazily on its own.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
	reindexCmd.Flags().Bool("skip-warm", false, "Only retune the durable index, don't build in-memory graphs")
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	store, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Pool().Close()

	ctx := context.Background()

	fmt.Println("Retuning durable vector index...")
	lists, err := store.EnsureVectorIndex(ctx)
	if err != nil {
		return fmt.Errorf("retuning vector index: %w", err)
	}
	fmt.Printf("Vector index rebuilt with %d partitions\n", lists)

	if mustGetBool(cmd, "skip-warm") {
		return nil
	}

	ids, err := store.EventIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	mgr := index.NewManager(store)
	mgr.MinVectors = cfg.Search.MinVectors

	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetDescription("Building event graphs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)
	for _, id := range ids {
		count, err := store.CountEmbeddings(ctx, id)
		if err != nil {
			return fmt.Errorf("counting embeddings for event %s: %w", id, err)
		}
		if count >= mgr.MinVectors {
			if err := mgr.Rebuild(ctx, id); err != nil {
				return fmt.Errorf("building graph for event %s: %w", id, err)
			}
		}
		bar.Add(1)
	}
	fmt.Println()
	fmt.Printf("Warmed graphs for %d events\n", len(ids))
	return nil
}
