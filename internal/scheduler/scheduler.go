package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/worker"
)

// Unit is the time unit of a job interval.
type Unit string

const (
	UnitSeconds Unit = "seconds"
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
)

type job struct {
	name     string
	interval int
	unit     Unit
	period   time.Duration
	priority worker.Priority
	fn       func(ctx context.Context) error
	nextRun  time.Time
}

// JobInfo is the read-only view of a registered job.
type JobInfo struct {
	Name     string    `json:"name"`
	Interval int       `json:"interval"`
	Unit     Unit      `json:"unit"`
	Priority string    `json:"priority"`
	NextRun  time.Time `json:"next_run"`
}

// Scheduler fires registered jobs into the worker pool on fixed intervals.
// Dispatch never runs a job inline: the tick loop only hands tasks to the
// pool, so one slow job cannot delay the others.
type Scheduler struct {
	pool   *worker.Pool
	logger *zap.Logger
	tick   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	jobs    []*job
	running bool
	quit    chan struct{}
	done    chan struct{}
}

func New(pool *worker.Pool, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		pool:   pool,
		logger: logger,
		tick:   time.Second,
		now:    time.Now,
	}
}

// AddJob registers a recurring job. The first run happens one full interval
// after registration.
func (s *Scheduler) AddJob(name string, interval int, unit Unit, priority worker.Priority, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %d", name, interval)
	}
	period, err := periodFor(interval, unit)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{
		name:     name,
		interval: interval,
		unit:     unit,
		period:   period,
		priority: priority,
		fn:       fn,
		nextRun:  s.now().Add(period),
	})
	s.logger.Info("job registered",
		zap.String("job", name),
		zap.Int("interval", interval),
		zap.String("unit", string(unit)),
		zap.Stringer("priority", priority))
	return nil
}

func periodFor(interval int, unit Unit) (time.Duration, error) {
	switch unit {
	case UnitSeconds:
		return time.Duration(interval) * time.Second, nil
	case UnitMinutes:
		return time.Duration(interval) * time.Minute, nil
	case UnitHours:
		return time.Duration(interval) * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown interval unit %q", unit)
	}
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	quit, done := s.quit, s.done
	s.mu.Unlock()

	go s.loop(quit, done)
	s.logger.Info("scheduler started", zap.Duration("tick", s.tick))
}

func (s *Scheduler) loop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			s.runPending()
		}
	}
}

// runPending dispatches every due job and advances its next-run time from the
// scheduled point, skipping any runs that were missed while the process was
// stalled so a long pause does not cause a burst of catch-up executions.
func (s *Scheduler) runPending() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if now.Before(j.nextRun) {
			continue
		}
		s.dispatch(j)
		for !j.nextRun.After(now) {
			j.nextRun = j.nextRun.Add(j.period)
		}
	}
}

func (s *Scheduler) dispatch(j *job) {
	task := &worker.Task{
		Name:     j.name,
		Priority: j.priority,
		Fn:       j.fn,
	}
	if _, err := s.pool.Submit(task); err != nil {
		s.logger.Error("job dispatch failed",
			zap.String("job", j.name), zap.Error(err))
	}
}

// Stop ends the tick loop and waits for it to exit, bounded to avoid hanging
// shutdown. In-flight job tasks are owned by the pool and keep running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	quit, done := s.quit, s.done
	s.mu.Unlock()

	close(quit)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("scheduler loop did not stop in time")
	}
	s.logger.Info("scheduler stopped")
}

// JobsInfo returns a snapshot of all registered jobs.
func (s *Scheduler) JobsInfo() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, JobInfo{
			Name:     j.name,
			Interval: j.interval,
			Unit:     j.unit,
			Priority: j.priority.String(),
			NextRun:  j.nextRun,
		})
	}
	return infos
}
