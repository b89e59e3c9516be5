package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/scheduler"
	"github.com/vitos/trade_bridge/internal/usecase"
	"github.com/vitos/trade_bridge/internal/worker"
)

// Server exposes the bridge status API: health, worker pool stats, scheduled
// jobs, the daily risk report and prometheus metrics.
type Server struct {
	pool   *worker.Pool
	sched  *scheduler.Scheduler
	risk   *usecase.RiskEngine
	logger *zap.Logger
	http   *http.Server
}

func NewServer(port int, pool *worker.Pool, sched *scheduler.Scheduler, risk *usecase.RiskEngine, logger *zap.Logger) *Server {
	s := &Server{
		pool:   pool,
		sched:  sched,
		risk:   risk,
		logger: logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/worker/stats", s.handleWorkerStats).Methods(http.MethodGet)
	r.HandleFunc("/api/scheduler/jobs", s.handleSchedulerJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/risk/report", s.handleRiskReport).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route tree, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start serves until Stop is called. It blocks.
func (s *Server) Start() error {
	s.logger.Info("status API listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleWorkerStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.pool.Stats())
}

func (s *Server) handleSchedulerJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.sched.JobsInfo())
}

func (s *Server) handleRiskReport(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.risk.Report())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", zap.Error(err))
	}
}
