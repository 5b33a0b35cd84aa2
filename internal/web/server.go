// Package web exposes the HTTP API: event lifecycle, pipeline ingestion,
// similarity search, and analytics.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/grapic/facematch/internal/analytics"
	"github.com/grapic/facematch/internal/config"
	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/index"
	"github.com/grapic/facematch/internal/search"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server

	store      facestore.Store
	idx        *index.Manager
	matcher    *search.Matcher
	aggregator *analytics.Aggregator
	refresher  *analytics.Refresher
}

// NewServer creates a new web server
func NewServer(
	cfg *config.Config,
	store facestore.Store,
	idx *index.Manager,
	matcher *search.Matcher,
	aggregator *analytics.Aggregator,
	refresher *analytics.Refresher,
) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:     cfg,
		router:     r,
		store:      store,
		idx:        idx,
		matcher:    matcher,
		aggregator: aggregator,
		refresher:  refresher,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
