package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/reconcile-backend/internal/api/handlers"
	"github.com/ledgerline/reconcile-backend/internal/api/middleware"
	"github.com/ledgerline/reconcile-backend/internal/application/service"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	svc        *service.ReconService
}

// NewServer creates a new API server.
func NewServer(cfg Config, svc *service.ReconService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		svc:    svc,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	runsHandler := handlers.NewRunsHandler(s.svc)
	reviewsHandler := handlers.NewReviewsHandler(s.svc)
	statsHandler := handlers.NewStatsHandler(s.svc)
	recordsHandler := handlers.NewRecordsHandler(s.svc)
	reportsHandler := handlers.NewReportsHandler(s.svc)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			// Matching runs
			r.Post("/matching/runs", runsHandler.Start)
			r.Get("/matching/runs", runsHandler.List)
			r.Get("/matching/runs/{jobID}", runsHandler.Get)
			r.Delete("/matching/runs/{jobID}", runsHandler.Cancel)

			// Review queue
			r.Get("/reviews", reviewsHandler.ListPending)
			r.Post("/reviews/bulk-approve", reviewsHandler.BulkApprove)

			// Statistics and reports
			r.Get("/stats", statsHandler.Get)
			r.Get("/reports/reconciliation", reportsHandler.Get)

			// Records
			r.Get("/transactions", recordsHandler.ListTransactions)
			r.Post("/transactions", recordsHandler.IngestTransactions)
			r.Get("/expenses", recordsHandler.ListExpenses)
			r.Post("/expenses", recordsHandler.IngestExpenses)
		})

		// Review decisions address a match directly; the tenant travels in
		// the request body.
		r.Post("/matches/{matchID}/approve", reviewsHandler.Approve)
		r.Post("/matches/{matchID}/reject", reviewsHandler.Reject)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
