// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	apihandler "github.com/newthinker/quantbench/internal/api/handler/api"
	"github.com/newthinker/quantbench/internal/api/job"
	"github.com/newthinker/quantbench/internal/api/middleware"
	"github.com/newthinker/quantbench/internal/api/response"
	"github.com/newthinker/quantbench/internal/metrics"
)

// Lab is the application surface served over HTTP.
type Lab interface {
	apihandler.BacktestApp
	apihandler.MarketApp
	apihandler.RunsApp
	Stats() map[string]any
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	APIKey         string
	AllowedOrigins []string
	MaxJobs        int
	JobTTL         time.Duration
	// RunTimeout bounds synchronous runs; the write timeout is derived
	// from it.
	RunTimeout  time.Duration
	MetricsPath string
}

// Dependencies holds the collaborators of the server. Metrics may be nil.
type Dependencies struct {
	Lab     Lab
	Metrics *metrics.Registry
}

// Server represents the HTTP server for quantbench
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	router     *mux.Router
	deps       Dependencies
	jobs       *job.Store
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Lab == nil {
		return nil, fmt.Errorf("lab is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 100
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		logger: logger,
		router: mux.NewRouter(),
		deps:   deps,
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
	}
	s.setupRoutes(cfg)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-API-Key", metrics.RequestIDHeader},
		ExposedHeaders: []string{metrics.RequestIDHeader},
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      c.Handler(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RunTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) {
	s.router.Use(metrics.LoggingMiddleware(s.logger))
	if s.deps.Metrics != nil {
		s.router.Use(metrics.HTTPMiddleware(s.deps.Metrics))
		s.router.Handle(cfg.MetricsPath, promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	auth := middleware.APIKeyAuth(cfg.APIKey)
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	backtests := apihandler.NewBacktestHandler(s.deps.Lab, s.jobs, s.deps.Metrics, s.logger)
	market := apihandler.NewMarketHandler(s.deps.Lab)
	runs := apihandler.NewRunsHandler(s.deps.Lab)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/discovery", market.Discovery).Methods(http.MethodGet)

	api.HandleFunc("/market/available", market.Available).Methods(http.MethodGet)
	api.Handle("/market/ingest", protect(market.Ingest)).Methods(http.MethodPost)

	api.Handle("/backtest/run", protect(backtests.Run)).Methods(http.MethodPost)
	api.Handle("/backtest/jobs", protect(backtests.Create)).Methods(http.MethodPost)
	api.HandleFunc("/backtest/jobs", backtests.List).Methods(http.MethodGet)
	api.HandleFunc("/backtest/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		backtests.GetStatus(w, r, mux.Vars(r)["id"])
	}).Methods(http.MethodGet)

	api.HandleFunc("/runs", runs.List).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		runs.Get(w, r, mux.Vars(r)["id"])
	}).Methods(http.MethodGet)
}

// Handler returns the root handler including CORS.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"stats":  s.deps.Lab.Stats(),
	})
}
