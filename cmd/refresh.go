package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grapic/facematch/internal/analytics"
	"github.com/grapic/facematch/internal/config"
	"github.com/grapic/facematch/internal/facestore/postgres"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the analytics aggregates once and print them",
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
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
	refresher := analytics.NewRefresher(store, store)
	if err := refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing aggregates: %w", err)
	}

	ids, err := store.EventIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	for _, id := range ids {
		agg := refresher.Snapshot(id)
		if agg == nil || agg.Stats.TotalMatches == 0 {
			continue
		}
		fmt.Printf("event %s: %d matches, mean %.3f, est. false positives %.2f%%\n",
			id, agg.Stats.TotalMatches, agg.Stats.Mean, agg.FalsePos.EstimatePct)
	}
	fmt.Println("Aggregates refreshed")
	return nil
}
