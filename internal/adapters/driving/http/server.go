package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/broker-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	provisionService   driving.ProvisionService
	deprovisionService driving.DeprovisionService
	serviceQuery       driving.ServiceQuery
	authService        driving.AuthService // nil disables API auth

	// Infrastructure
	metricsHandler http.Handler
	checks         map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// AllowedOrigins enables CORS for the listed origins ("*" for any)
	AllowedOrigins []string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// Services groups the driving ports the API exposes
type Services struct {
	Provision   driving.ProvisionService
	Deprovision driving.DeprovisionService
	Query       driving.ServiceQuery

	// Auth validates bearer tokens on /api/v1. Nil leaves the API open.
	Auth driving.AuthService
}

// NewServer creates a new HTTP server. checks are pinged by /ready;
// metricsHandler is served on /metrics when non-nil.
func NewServer(cfg Config, services Services, metricsHandler http.Handler, checks map[string]Pinger) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:             http.NewServeMux(),
		version:            cfg.Version,
		logger:             logger,
		provisionService:   services.Provision,
		deprovisionService: services.Deprovision,
		serviceQuery:       services.Query,
		authService:        services.Auth,
		metricsHandler:     metricsHandler,
		checks:             checks,
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewLoggingMiddleware(logger).Handler(handler)
	if len(cfg.AllowedOrigins) > 0 {
		handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	}
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped root handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	protect := func(h http.HandlerFunc) http.Handler {
		if s.authService == nil {
			return h
		}
		return NewAuthMiddleware(s.authService).Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	if s.metricsHandler != nil {
		s.router.Handle("GET /metrics", s.metricsHandler)
	}

	// Service lifecycle endpoints
	s.router.Handle("POST /api/v1/services", protect(s.handleProvision))
	s.router.Handle("GET /api/v1/services/{id}", protect(s.handleGetService))
	s.router.Handle("GET /api/v1/services/{id}/last_operation", protect(s.handleGetLastOperation))
	s.router.Handle("DELETE /api/v1/services/{id}", protect(s.handleDeprovision))
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
