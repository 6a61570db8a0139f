// Package ops serves the gateway's operational endpoints: health checks
// and Prometheus metrics. It listens on its own port so the MCP stdio
// transport keeps stdout to itself.
package ops

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Listener is the HTTP server for /health and /metrics.
type Listener struct {
	addr     string
	registry *prometheus.Registry
	health   *HealthChecker
	logger   *slog.Logger
	server   *http.Server
}

// Option is a functional option for configuring Listener.
type Option func(*Listener)

// WithAddr sets the listen address. Default is "127.0.0.1:9000".
func WithAddr(addr string) Option {
	return func(l *Listener) {
		l.addr = addr
	}
}

// WithLogger sets the logger for the listener.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(l *Listener) {
		l.health = hc
	}
}

// NewListener creates an ops listener exposing the given registry.
func NewListener(reg *prometheus.Registry, opts ...Option) *Listener {
	l := &Listener{
		addr:     "127.0.0.1:9000",
		registry: reg,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// handler builds the route table.
func (l *Listener) handler() http.Handler {
	mux := http.NewServeMux()
	if l.health != nil {
		mux.Handle("/health", l.health.Handler())
	} else {
		mux.Handle("/health", healthHandler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(l.registry, promhttp.HandlerOpts{
		Registry: l.registry,
	}))
	return mux
}

// Start begins serving the operational endpoints. It blocks until the
// context is cancelled or the server fails.
func (l *Listener) Start(ctx context.Context) error {
	l.server = &http.Server{
		Addr:    l.addr,
		Handler: l.handler(),
	}

	errCh := make(chan error, 1)

	go func() {
		l.logger.Info("ops listener started", "addr", l.addr)
		if err := l.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down ops listener")
		return l.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (l *Listener) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := l.server.Shutdown(ctx); err != nil {
		l.logger.Error("error during ops listener shutdown", "error", err)
		return err
	}

	l.logger.Info("ops listener shutdown complete")
	return nil
}

// Close gracefully shuts down the listener.
func (l *Listener) Close() error {
	if l.server == nil {
		return nil
	}
	return l.shutdown()
}
