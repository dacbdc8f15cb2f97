package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-data-etl/internal/pipeline"
)

// StatusSource exposes the most recent run. The pipeline implements it.
type StatusSource interface {
	LastReport() *pipeline.RunReport
}

// Server exposes health, readiness, status, and metrics HTTP endpoints for
// daemon mode.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /status, and
// /metrics routes.
func NewServer(addr string, source StatusSource, logger *slog.Logger) *Server {
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

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(source))
	mux.HandleFunc("GET /status", handleStatus(source))
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready once the first run has completed. The outcome
// of that run is /status business; readiness only says the scheduler is
// alive and producing reports.
func handleReady(source StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if source.LastReport() == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  "no completed runs yet",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type runStatus struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Summary    string    `json:"summary"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	Locations  int       `json:"locations"`
	Approved   int       `json:"approved"`
	Rejected   int       `json:"rejected"`
}

func handleStatus(source StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report := source.LastReport()
		if report == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed runs yet"})
			return
		}
		status := "succeeded"
		if report.Failed() {
			status = "failed"
		}
		writeJSON(w, http.StatusOK, runStatus{
			RunID:      report.RunID,
			Status:     status,
			Summary:    report.Summary(),
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
			Fetched:    report.Fetched,
			Locations:  report.Locations,
			Approved:   report.Approved,
			Rejected:   report.Rejected(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
