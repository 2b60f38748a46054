// Package selfhealth exposes the watcher process's own liveness and
// readiness over HTTP, alongside the Prometheus metrics endpoint. It
// answers "is the watcher itself OK", not "are the watched containers
// OK" — that question is the supervisor's, reported via /status in
// chat and via watcher_* metrics.
package selfhealth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/health"
	"github.com/beranalpa/cortensor-watcher-bot/pkg/metrics"
)

// Server serves /healthz, /ready and /metrics.
type Server struct {
	mux            *http.ServeMux
	readinessChecks []health.Checker
}

// New builds a Server. readinessChecks are run, in order, on every
// /ready request; the endpoint reports unready on the first failure.
func New(readinessChecks ...health.Checker) *Server {
	s := &Server{readinessChecks: readinessChecks}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthzHandler)
	mux.HandleFunc("/ready", s.readyHandler)
	mux.Handle("/metrics", metrics.Handler())
	s.mux = mux
	return s
}

// Handler returns the HTTP handler for embedding or direct use with
// http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the server with the same timeouts the rest of
// the stack uses for outbound calls.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "healthy"})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.readinessChecks))
	ready := true
	for _, c := range s.readinessChecks {
		res := c.Check(ctx)
		if !res.Healthy {
			ready = false
		}
		checks[string(c.Type())] = res.Message
	}

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, statusResponse{Status: status, Checks: checks})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
