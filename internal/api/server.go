// Package api exposes the HTTP surface: CRUD for recipients, templates,
// campaigns and email configurations, the campaign lifecycle actions, the
// bulk recipient import endpoint, and read-only statistics. Handlers stay
// thin; all business rules live in the service and dispatch packages.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/ignite/campaign-mailer/internal/config"
)

// Server wraps the HTTP listener around the router.
type Server struct {
	cfg    config.ServerConfig
	server *http.Server
}

// NewServer creates the API server.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      SetupRoutes(h),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	log.Printf("[API] Listening on %s", s.cfg.Addr())
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
