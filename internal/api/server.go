package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/ratelimit"
)

// Server represents the API server
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server. A nil limiter disables rate limiting.
func NewServer(cfg config.ServerConfig, handlers *Handlers, limiter *ratelimit.Limiter) *Server {
	return &Server{
		handler: SetupRoutes(handlers, limiter, cfg),
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Uploads are capped at a few megabytes, so short timeouts suffice.
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      90 * time.Second,
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
