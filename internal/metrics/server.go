package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout bounds the graceful shutdown of the metrics listener.
const shutdownTimeout = 5 * time.Second

// Server serves the /metrics endpoint.
type Server struct {
	cfg     Config
	metrics *Metrics
	logger  *slog.Logger

	ln net.Listener
}

// NewServer creates a Server. Config defaults are applied automatically.
func NewServer(cfg Config, m *Metrics, logger *slog.Logger) *Server {
	cfg.ApplyDefaults()
	return &Server{
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("component", "metrics"),
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return mux
}

// Listen binds cfg.ListenAddr so address errors surface before Serve runs.
// It is a no-op when no listen address is configured or the listener is
// already bound.
func (s *Server) Listen() error {
	if s.cfg.ListenAddr == "" || s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen succeeded.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve serves on the listener bound by Listen, binding it first if needed,
// and blocks until ctx is cancelled. It returns nil immediately when no
// listen address is configured.
func (s *Server) Serve(ctx context.Context) error {
	if s.cfg.ListenAddr == "" {
		return nil
	}
	if err := s.Listen(); err != nil {
		return err
	}
	ln := s.ln

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("metrics listener started", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics listener shutdown failed", "error", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: serve: %w", err)
	}
}
