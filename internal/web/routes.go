package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grapic/facematch/internal/web/handlers"
	"github.com/grapic/facematch/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	eventsHandler := handlers.NewEventsHandler(s.store, s.idx, s.config)
	photosHandler := handlers.NewPhotosHandler(s.store, s.idx)
	embeddingsHandler := handlers.NewEmbeddingsHandler(s.store)
	searchHandler := handlers.NewSearchHandler(s.matcher, s.config)
	analyticsHandler := handlers.NewAnalyticsHandler(s.aggregator, s.refresher, s.store)

	// Health and metrics (no identity resolution needed)
	s.router.Get("/healthz", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Principal(s.store, s.config.Auth.ServiceKey))

		// Events
		r.Post("/events", eventsHandler.Create)
		r.Post("/events/join", eventsHandler.Join)
		r.Get("/events", eventsHandler.List)
		r.Get("/events/{id}", eventsHandler.Get)
		r.Delete("/events/{id}", eventsHandler.Delete)

		// Pipeline ingestion
		r.Post("/events/{id}/photos", photosHandler.Create)
		r.Get("/events/{id}/photos", photosHandler.List)
		r.Patch("/photos/{id}", photosHandler.UpdateStatus)
		r.Delete("/photos/{id}", photosHandler.Delete)
		r.Post("/photos/{id}/embeddings", embeddingsHandler.Ingest)

		// Search
		r.Post("/events/{id}/search", searchHandler.Search)

		// Analytics
		r.Get("/events/{id}/analytics/distribution", analyticsHandler.Distribution)
		r.Get("/events/{id}/analytics/stats", analyticsHandler.Stats)
		r.Get("/events/{id}/analytics/false-positives", analyticsHandler.FalsePositives)
		r.Get("/events/{id}/analytics/snapshot", analyticsHandler.Snapshot)
		r.Post("/analytics/refresh", analyticsHandler.Refresh)
	})
}
