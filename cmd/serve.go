package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grapic/facematch/internal/analytics"
	"github.com/grapic/facematch/internal/config"
	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/facestore/memory"
	"github.com/grapic/facematch/internal/facestore/postgres"
	"github.com/grapic/facematch/internal/index"
	"github.com/grapic/facematch/internal/observability"
	"github.com/grapic/facematch/internal/search"
	"github.com/grapic/facematch/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the facematch API server.
The server exposes event management, embedding ingestion, similarity
search, and match analytics over HTTP. Without DATABASE_URL it runs on an
in-memory store, which is intended for development only.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// openStore picks the storage backend: PostgreSQL when configured,
// otherwise the volatile in-memory store.
func openStore(cfg *config.Config) (facestore.Store, func(), error) {
	if cfg.Database.URL == "" {
		fmt.Println("DATABASE_URL not set, using in-memory store (data is not persisted)")
		return memory.NewStore(), func() {}, nil
	}

	fmt.Println("Connecting to PostgreSQL database...")
	store, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return store, func() { store.Pool().Close() }, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	idx := index.NewManager(store)
	idx.MinVectors = cfg.Search.MinVectors
	idx.OnRebuild = func(eventID uuid.UUID, count int) {
		observability.IndexRebuilds.Inc()
		log.Printf("index: rebuilt event %s with %d embeddings", eventID, count)
	}

	searcher := search.NewService(store, store, idx)
	recorder := analytics.NewRecorder(store, store)
	matcher := search.NewMatcher(searcher, store, recorder)
	aggregator := analytics.NewAggregator(store, store)
	refresher := analytics.NewRefresher(store, store)

	server := web.NewServer(cfg, store, idx, matcher, aggregator, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers: analytics snapshot refresh and expired-event
	// cleanup.
	go refresher.Start(ctx, cfg.Analytics.RefreshInterval)
	go runExpiryJanitor(ctx, store, idx, cfg.Events.CleanupInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting facematch API on http://%s\n", cfg.HTTP.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// runExpiryJanitor periodically removes events past their expiry together
// with everything scoped to them.
func runExpiryJanitor(ctx context.Context, store facestore.EventWriter, idx *index.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := store.DeleteExpiredEvents(ctx, time.Now())
			if err != nil {
				log.Printf("janitor: deleting expired events: %v", err)
				continue
			}
			for _, id := range ids {
				idx.Invalidate(id)
			}
			if len(ids) > 0 {
				log.Printf("janitor: removed %d expired events", len(ids))
			}
		}
	}
}
