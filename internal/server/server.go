// Package server exposes a running submission over HTTP: Prometheus metrics
// and liveness and readiness probes backed by the health checks.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/hirs-avhrr/internal/health"
)

// Server serves /metrics and the /health probes.
type Server struct {
	httpServer      *http.Server
	checks          *health.Manager
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g., ":9100", "127.0.0.1:9100")
	Address string

	// ShutdownTimeout is the maximum time to wait for connections to drain.
	// Defaults to 10 seconds.
	ShutdownTimeout time.Duration

	// ReadTimeout defaults to 10 seconds.
	ReadTimeout time.Duration

	// WriteTimeout defaults to 30 seconds; readiness runs the health checks.
	WriteTimeout time.Duration

	// IdleTimeout defaults to 60 seconds.
	IdleTimeout time.Duration
}

// ProbeResponse is the JSON body of the probe endpoints.
type ProbeResponse struct {
	Status  health.Status             `json:"status"`
	Message string                    `json:"message,omitempty"`
	Checks  map[string]*health.Result `json:"checks,omitempty"`
}

// NewServer creates a server for reg and checks. checks may be nil, in which
// case readiness only reflects shutdown.
func NewServer(reg *prometheus.Registry, checks *health.Manager, cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s := &Server{
		checks:          checks,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	mux.HandleFunc("/healthz", s.handleReadiness)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Listen binds the configured address. Binding separately from Serve lets
// callers report a busy port before starting work.
func (s *Server) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return l, nil
}

// Serve blocks until the server is shut down. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Serve(l net.Listener) error {
	return s.httpServer.Serve(l)
}

// Shutdown fails readiness, stops keep-alives and drains connections for at
// most ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

func (s *Server) writeProbe(w http.ResponseWriter, resp ProbeResponse, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleLiveness always answers 200; during shutdown the status is degraded.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := ProbeResponse{Status: health.StatusHealthy}
	if s.IsShuttingDown() {
		resp = ProbeResponse{Status: health.StatusDegraded, Message: "shutting down"}
	}
	s.writeProbe(w, resp, http.StatusOK)
}

// handleReadiness runs the health checks and answers 503 when any is
// unhealthy or the server is shutting down.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.IsShuttingDown() {
		s.writeProbe(w, ProbeResponse{Status: health.StatusUnhealthy, Message: "shutting down"},
			http.StatusServiceUnavailable)
		return
	}

	resp := ProbeResponse{Status: health.StatusHealthy}
	if s.checks != nil {
		resp.Checks = s.checks.Check(r.Context())
		resp.Status = s.checks.OverallStatus(resp.Checks)
	}
	code := http.StatusOK
	if resp.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeProbe(w, resp, code)
}
