// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api serves the capture pipeline's HTTP surface: Prometheus
// metrics, health, module status and the live event stream.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/netcapture/internal/errors"
	"grimm.is/netcapture/internal/logging"
	"grimm.is/netcapture/internal/netmon"
)

// ServerConfig holds HTTP server limits.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration // Slowloris prevention
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration
}

// DefaultServerConfig returns the limits used by Start.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Zero so /events streams are not cut off mid-flight.
		WriteTimeout:    0,
		IdleTimeout:     60 * time.Second,
		MaxHeaderBytes:  1 << 16, // 64KB
		ShutdownTimeout: 5 * time.Second,
	}
}

// StatusProvider reports the state of one running module.
type StatusProvider interface {
	Status() netmon.Status
}

// Options wires a Server.
type Options struct {
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Events backs /events. The route is omitted when nil.
	Events  http.Handler
	Modules []StatusProvider
	Logger  *logging.Logger
}

// Server handles API requests.
type Server struct {
	gatherer  prometheus.Gatherer
	events    http.Handler
	modules   []StatusProvider
	logger    *logging.Logger
	startTime time.Time
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("api")
	}
	return &Server{
		gatherer:  opts.Gatherer,
		events:    opts.Events,
		modules:   opts.Modules,
		logger:    opts.Logger,
		startTime: time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/status/{interface}", s.handleInterfaceStatus).Methods(http.MethodGet)
	if s.events != nil {
		router.Handle("/events", s.events).Methods(http.MethodGet)
	}
	return router
}

// Start listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg := DefaultServerConfig()
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		// Hijacked websocket connections are not tracked by Shutdown.
		server.Close()
	}
	s.logger.Info("API server stopped")
	return nil
}
