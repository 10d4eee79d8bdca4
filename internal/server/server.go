// Package server exposes the control surface: health, halt/resume, and
// Prometheus metrics. It never touches in-flight work; halting only
// gates future trade-entry cycles.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/tiertrader/internal/metrics"
	"github.com/quantfold/tiertrader/internal/sched"
)

type Server struct {
	router *mux.Router
	srv    *http.Server
	gate   *sched.Gate
}

func New(addr string, gate *sched.Gate) *Server {
	s := &Server{
		router: mux.NewRouter(),
		gate:   gate,
	}
	s.routes()
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/halt", s.handleHalt).Methods(http.MethodPost)
	s.router.HandleFunc("/resume", s.handleResume).Methods(http.MethodPost)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "OK",
		"trading_enabled": s.gate.Enabled(),
	})
}

func (s *Server) handleHalt(w http.ResponseWriter, r *http.Request) {
	s.gate.Disable()
	metrics.TradingEnabled.Set(0)
	log.Warn().Msg("handleHalt | trade-entry cycles halted")
	writeJSON(w, http.StatusOK, map[string]any{"status": "HALTED"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.gate.Enable()
	metrics.TradingEnabled.Set(1)
	log.Info().Msg("handleResume | trade-entry cycles resumed")
	writeJSON(w, http.StatusOK, map[string]any{"status": "RESUMED"})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("Start | control server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("writeJSON | encode failed")
	}
}
