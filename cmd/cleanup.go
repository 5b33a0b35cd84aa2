package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grapic/facematch/internal/config"
	"github.com/grapic/facematch/internal/facestore/postgres"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired events and everything scoped to them",
	RunE:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	store, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Pool().Close()

	ids, err := store.DeleteExpiredEvents(context.Background(), time.Now())
	if err != nil {
		return fmt.Errorf("deleting expired events: %w", err)
	}

	if len(ids) == 0 {
		fmt.Println("No expired events")
		return nil
	}
	for _, id := range ids {
		fmt.Printf("Deleted expired event %s\n", id)
	}
	fmt.Printf("Removed %d expired events\n", len(ids))
	return nil
}
