package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fortai-labs/firmata/internal/app"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second
)

// Server owns the HTTP listener and its route table.
type Server struct {
	app  *app.App
	addr string
	http *http.Server
}

// New builds the server around the wired application.
func New(application *app.App) *Server {
	s := &Server{
		app:  application,
		addr: net.JoinHostPort(application.Config.Server.Host, strconv.Itoa(application.Config.Server.Port)),
	}

	s.http = &http.Server{
		Addr:         s.addr,
		Handler:      s.withMiddleware(s.setupRoutes()),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return s
}

// Start blocks on ListenAndServe until the server stops or fails.
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("address", s.addr).
		Str("health", fmt.Sprintf("http://%s/api/health", s.addr)).
		Msg("HTTP server listening")

	err := s.http.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
