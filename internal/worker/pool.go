package worker

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrPoolClosed is returned when submitting to a pool after Shutdown.
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrQueueFull is returned when the submission buffer has no room left.
	ErrQueueFull = errors.New("worker pool submission buffer full")
)

// Priority orders queued tasks. Lower value runs first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Task is a unit of work. It is immutable once created and discarded after it
// completes or fails.
type Task struct {
	Name      string
	Priority  Priority
	Fn        func(ctx context.Context) error
	CreatedAt time.Time
}

// Handle tracks a directly submitted task. Err is valid once Done is closed.
type Handle struct {
	done    chan struct{}
	err     error
	claimed atomic.Bool // outcome counted exactly once, by worker or by queue timeout
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the task error. Only valid after Done is closed.
func (h *Handle) Err() error { return h.err }

// Wait blocks until the task finishes or ctx expires.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a consistent snapshot of pool bookkeeping.
type Stats struct {
	MaxWorkers int   `json:"max_workers"`
	Active     int64 `json:"active"`
	Queued     int   `json:"queued"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

type submission struct {
	task   *Task
	handle *Handle
}

const submitBuffer = 256

// Pool executes tasks with bounded parallelism. Tasks reach workers on two
// paths: Submit dispatches immediately (fire-and-track), Enqueue goes through
// a priority queue drained sequentially by a single processor goroutine.
// There is no ordering guarantee across the two paths.
type Pool struct {
	maxWorkers    int
	workerTimeout time.Duration
	logger        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex // guards closed and the submissions send
	closed bool

	submissions chan submission
	workersWG   sync.WaitGroup

	queueMu sync.Mutex
	queue   taskQueue
	seq     uint64
	notify  chan struct{}

	procQuit chan struct{}
	procDone chan struct{}

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool starts maxWorkers workers and the queue processor.
func NewPool(maxWorkers int, workerTimeout time.Duration, logger *zap.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if workerTimeout <= 0 {
		workerTimeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		maxWorkers:    maxWorkers,
		workerTimeout: workerTimeout,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		submissions:   make(chan submission, submitBuffer),
		notify:        make(chan struct{}, 1),
		procQuit:      make(chan struct{}),
		procDone:      make(chan struct{}),
	}
	for i := 0; i < maxWorkers; i++ {
		p.workersWG.Add(1)
		go p.workerLoop()
	}
	go p.processQueue()

	logger.Info("worker pool started", zap.Int("max_workers", maxWorkers))
	return p
}

// Submit dispatches a task into the pool immediately, bypassing the priority
// queue. The returned handle carries the task error to whoever waits on it.
func (p *Pool) Submit(t *Task) (*Handle, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	h := &Handle{done: make(chan struct{})}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	select {
	case p.submissions <- submission{task: t, handle: h}:
		return h, nil
	default:
		return nil, ErrQueueFull
	}
}

// Enqueue adds a task to the priority queue. Equal priorities drain FIFO.
func (p *Pool) Enqueue(t *Task) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPoolClosed
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	p.queueMu.Lock()
	p.seq++
	heap.Push(&p.queue, &queueItem{task: t, seq: p.seq})
	depth := p.queue.Len()
	p.queueMu.Unlock()

	metricQueueDepth.Set(float64(depth))
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// Stats returns a snapshot of the pool counters. A task is counted in exactly
// one of active, completed or failed.
func (p *Pool) Stats() Stats {
	p.queueMu.Lock()
	queued := p.queue.Len()
	p.queueMu.Unlock()
	return Stats{
		MaxWorkers: p.maxWorkers,
		Active:     p.active.Load(),
		Queued:     queued,
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
	}
}

// Drain waits until the priority queue and all workers are idle, or ctx
// expires. It does not stop the pool.
func (p *Pool) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.queueMu.Lock()
		queued := p.queue.Len()
		p.queueMu.Unlock()
		if queued == 0 && len(p.submissions) == 0 && p.active.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown stops accepting work. With wait=true it blocks until active tasks
// finish; otherwise the pool context is cancelled and tasks are expected to
// observe it (cooperative only, nothing is force-killed).
func (p *Pool) Shutdown(wait bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.procQuit)
	<-p.procDone

	close(p.submissions)
	if wait {
		p.workersWG.Wait()
	} else {
		p.cancel()
	}
	p.logger.Info("worker pool shut down",
		zap.Int64("completed", p.completed.Load()),
		zap.Int64("failed", p.failed.Load()))
}

func (p *Pool) workerLoop() {
	defer p.workersWG.Done()
	for sub := range p.submissions {
		p.runTask(sub)
	}
}

func (p *Pool) runTask(sub submission) {
	p.active.Add(1)
	metricTasksActive.Inc()
	start := time.Now()

	err := p.safeCall(sub.task)

	sub.handle.err = err
	p.settle(sub.task, sub.handle, err, time.Since(start))
	close(sub.handle.done)

	p.active.Add(-1)
	metricTasksActive.Dec()
}

// safeCall runs the task body, converting a panic into an error at the task
// boundary so it never propagates past the worker.
func (p *Pool) safeCall(t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()
	return t.Fn(p.ctx)
}

// settle counts the task outcome unless the queue processor already claimed
// it as timed out.
func (p *Pool) settle(t *Task, h *Handle, err error, dur time.Duration) {
	if !h.claimed.CompareAndSwap(false, true) {
		return
	}
	metricTaskDuration.WithLabelValues(t.Name).Observe(dur.Seconds())
	if err != nil {
		p.failed.Add(1)
		metricTasksFailed.Inc()
		p.logger.Error("task failed",
			zap.String("task", t.Name),
			zap.Stringer("priority", t.Priority),
			zap.Duration("duration", dur),
			zap.Error(err))
		return
	}
	p.completed.Add(1)
	metricTasksCompleted.Inc()
	p.logger.Debug("task completed",
		zap.String("task", t.Name),
		zap.Duration("duration", dur))
}

// processQueue drains the priority queue sequentially: submit one item, wait
// for it (bounded by workerTimeout), pull the next. A slow task never delays
// direct Submit callers, only the queue behind it.
func (p *Pool) processQueue() {
	defer close(p.procDone)

	sweep := time.NewTicker(time.Second)
	defer sweep.Stop()

	for {
		item := p.popQueue()
		if item == nil {
			select {
			case <-p.procQuit:
				return
			case <-p.notify:
			case <-sweep.C:
			}
			continue
		}

		// A full submission buffer is back-pressure, not a task failure. The
		// item was accepted into the queue, so keep retrying until a worker
		// slot frees up or the pool shuts down.
		h, err := p.Submit(item.task)
		for errors.Is(err, ErrQueueFull) {
			select {
			case <-p.procQuit:
				return
			case <-time.After(10 * time.Millisecond):
			}
			h, err = p.Submit(item.task)
		}
		if err != nil {
			if errors.Is(err, ErrPoolClosed) {
				return
			}
			p.failed.Add(1)
			metricTasksFailed.Inc()
			p.logger.Error("queue dispatch failed",
				zap.String("task", item.task.Name), zap.Error(err))
			continue
		}

		select {
		case <-h.done:
		case <-time.After(p.workerTimeout):
			// The task keeps running in the background; it is counted as
			// failed here and the worker-side settle will find it claimed.
			if h.claimed.CompareAndSwap(false, true) {
				p.failed.Add(1)
				metricTasksFailed.Inc()
				p.logger.Warn("task exceeded worker timeout",
					zap.String("task", item.task.Name),
					zap.Duration("timeout", p.workerTimeout))
			}
		case <-p.procQuit:
			return
		}
	}
}

func (p *Pool) popQueue() *queueItem {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if p.queue.Len() == 0 {
		return nil
	}
	item := heap.Pop(&p.queue).(*queueItem)
	metricQueueDepth.Set(float64(p.queue.Len()))
	return item
}
