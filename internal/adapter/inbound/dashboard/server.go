// Package dashboard serves the read-only audit viewer: an embedded HTML
// page plus a JSON events API, both gated behind an admin API key.
package dashboard

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/Microck/bansho/internal/domain/audit"
	"github.com/Microck/bansho/internal/domain/proxy"
)

//go:embed dashboard.html
var pageHTML []byte

// Server is the dashboard HTTP server.
type Server struct {
	addr        string
	credentials proxy.CredentialResolver
	events      audit.Reader
	logger      *slog.Logger
	server      *http.Server
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is "127.0.0.1:9100".
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the logger for the dashboard server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a dashboard server over the given credential
// resolver and audit reader.
func NewServer(credentials proxy.CredentialResolver, events audit.Reader, opts ...Option) *Server {
	s := &Server{
		addr:        "127.0.0.1:9100",
		credentials: credentials,
		events:      events,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// handler builds the route table.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/dashboard", s.handleIndex)
	mux.HandleFunc("/api/events", s.handleEvents)
	return mux
}

// Start begins serving the dashboard. It blocks until the context is
// cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("dashboard started", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down dashboard")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during dashboard shutdown", "error", err)
		return err
	}

	s.logger.Info("dashboard shutdown complete")
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.shutdown()
}
