package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/scheduler"
	"github.com/vitos/trade_bridge/internal/usecase"
	"github.com/vitos/trade_bridge/internal/worker"
)

type noopCache struct{}

func (noopCache) Set(key, value string, ttl time.Duration) error    { return nil }
func (noopCache) Get(key string) (string, bool, error)              { return "", false, nil }
func (noopCache) HashSet(name string, f map[string]string) error    { return nil }
func (noopCache) HashGetAll(name string) (map[string]string, error) { return nil, nil }
func (noopCache) Delete(key string) error                           { return nil }

type noopAlerter struct{}

func (noopAlerter) PublishAlert(ctx context.Context, title, message string) {}

func newTestServer(t *testing.T) (*Server, *worker.Pool, *scheduler.Scheduler) {
	t.Helper()
	pool := worker.NewPool(2, time.Minute, zap.NewNop())
	t.Cleanup(func() { pool.Shutdown(true) })
	sched := scheduler.New(pool, zap.NewNop())
	risk := usecase.NewRiskEngine(usecase.RiskConfig{}, noopCache{}, noopAlerter{}, zap.NewNop())
	return NewServer(8080, pool, sched, risk, zap.NewNop()), pool, sched
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("body = %v", body)
	}
}

func TestWorkerStats(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv.Handler(), "/api/worker/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats worker.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.MaxWorkers != 2 {
		t.Fatalf("max workers = %d, want 2", stats.MaxWorkers)
	}
}

func TestSchedulerJobs(t *testing.T) {
	srv, _, sched := newTestServer(t)
	noop := func(ctx context.Context) error { return nil }
	if err := sched.AddJob("sync_trades", 30, scheduler.UnitSeconds, worker.PriorityHigh, noop); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv.Handler(), "/api/scheduler/jobs")
	var jobs []scheduler.JobInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Name != "sync_trades" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestRiskReport(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv.Handler(), "/api/risk/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report["trading_stopped"] != false {
		t.Fatalf("report = %v", report)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty metrics body")
	}
}
