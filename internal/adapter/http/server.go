package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// RunReporter exposes the most recent completed association run.
type RunReporter interface {
	LastRun() (domain.Run, bool)
}

// Server exposes health, readiness, metrics and last-run HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /runs/latest routes.
func NewServer(addr string, ready ReadinessChecker, runs RunReporter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", handleHealth(runs))
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /runs/latest", handleLatestRun(runs))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// statusResponse is the body of the status endpoints. The run fields are
// omitted until the first run exists.
type statusResponse struct {
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	LastRunID    string     `json:"last_run_id,omitempty"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	Associated   *int       `json:"associated,omitempty"`
	Unassociated *int       `json:"unassociated,omitempty"`
}

// handleHealth reports liveness. The process is healthy whether or not a run
// has succeeded; the last run is attached for operators.
func handleHealth(runs RunReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := statusResponse{Status: "healthy"}
		if run, ok := runs.LastRun(); ok {
			associated, unassociated := len(run.Associations), len(run.Unassociated)
			at := run.GeneratedAt
			body.LastRunID = run.ID
			body.LastRunAt = &at
			body.Associated = &associated
			body.Unassociated = &unassociated
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "not ready", Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
	}
}

func handleLatestRun(runs RunReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		run, ok := runs.LastRun()
		if !ok {
			writeJSON(w, http.StatusNotFound, statusResponse{Status: "no run", Error: "no association run yet"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
