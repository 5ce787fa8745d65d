package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides HTTP endpoints for Prometheus metrics and health checks.
type Server struct {
	addr   string
	router *mux.Router
	server *http.Server
	logger *slog.Logger

	ready    atomic.Bool
	listener net.Listener
}

// NewServer creates a new metrics server exporting the metrics of g.
func NewServer(addr string, g prometheus.Gatherer, logger *slog.Logger) *Server {
	s := &Server{
		addr:   addr,
		router: mux.NewRouter(),
		logger: logger,
	}

	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods("GET")

	// Liveness: the ffexec process is up
	s.router.HandleFunc("/health", healthHandler).Methods("GET")
	s.router.HandleFunc("/healthz", healthHandler).Methods("GET")

	// Readiness: the supervised process is running
	s.router.HandleFunc("/ready", s.readyHandler).Methods("GET")
	s.router.HandleFunc("/readyz", s.readyHandler).Methods("GET")

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	return s
}

// healthHandler handles health check requests.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// SetReady sets what /ready reports.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Router returns the router, so that callers can add routes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start binds the address and serves in a goroutine.
// Returns once listening. Use Shutdown to stop.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	s.listener = l
	s.logger.Info("metrics_server_starting", "addr", l.Addr().String())

	go func() {
		if err := s.server.Serve(l); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics_server_error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("metrics_server_shutting_down")
	return s.server.Shutdown(ctx)
}

// Addr returns the listening address once started, else the configured
// one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
