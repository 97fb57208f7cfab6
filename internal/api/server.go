package api

import (
	"context"
	"net/http"
	"time"

	"github.com/peerplay/consumption-dashboard/internal/auth"
	"github.com/peerplay/consumption-dashboard/internal/config"
	"github.com/peerplay/consumption-dashboard/internal/metrics"
)

// Server represents the API server
type Server struct {
	config      config.ServerConfig
	handler     http.Handler
	handlers    *Handlers
	server      *http.Server
	authManager *auth.AuthManager
}

// NewServer creates the API server. A nil authManager serves every route
// without a login.
func NewServer(cfg config.ServerConfig, h *Handlers, health *HealthChecker, authManager *auth.AuthManager, m *metrics.Metrics) *Server {
	router := SetupRoutes(h, health, authManager, m, allowedOrigins(cfg))
	return &Server{
		config:      cfg,
		handler:     router,
		handlers:    h,
		authManager: authManager,
	}
}

func allowedOrigins(cfg config.ServerConfig) []string {
	origins := []string{"http://localhost:8080", "http://localhost:8501"}
	if cfg.BaseURL != "" {
		origins = append(origins, cfg.BaseURL)
	}
	return origins
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Full-table warehouse reads can take a while on a cold cache.
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
