// Package concurrency provides a bounded, dynamically sized worker pool.
package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/logger"
)

// Task is a unit of work submitted to the pool.
type Task func(ctx context.Context)

// ErrQueueFull is returned by Submit when the queue is at capacity and the
// pool is already running its maximum number of workers.
var ErrQueueFull = errors.Unavailable("worker pool queue is full", nil)

// Config controls pool sizing and lifecycle.
type Config struct {
	// MinWorkers is kept running at all times.
	MinWorkers int
	// MaxWorkers is the ceiling the pool scales up to under load.
	MaxWorkers int
	// QueueSize bounds the pending-task buffer.
	QueueSize int
	// IdleTimeout is how long a worker above MinWorkers waits for a task
	// before exiting.
	IdleTimeout time.Duration
	// MonitorInterval is how often the pool logs its depth/worker count.
	// Zero disables monitoring.
	MonitorInterval time.Duration
	// DrainTimeout bounds how long Shutdown waits for in-flight and
	// queued tasks to finish before cancelling the worker context.
	DrainTimeout time.Duration
}

// WorkerPool runs submitted Tasks on a bounded, elastic set of goroutines.
// Workers above MinWorkers are spawned on demand when the queue backs up
// and retire after sitting idle for IdleTimeout.
type WorkerPool struct {
	cfg       Config
	taskQueue chan Task

	wg        sync.WaitGroup
	workers   atomic.Int64
	completed atomic.Int64

	mu      sync.Mutex
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
}

// NewWorkerPool builds a pool from cfg, filling in a sane default for any
// zero field.
func NewWorkerPool(cfg Config) *WorkerPool {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &WorkerPool{
		cfg:       cfg,
		taskQueue: make(chan Task, cfg.QueueSize),
	}
}

// Start launches the minimum worker count and, if configured, the monitor
// loop. ctx governs every worker's lifetime; cancelling it stops the pool
// immediately without draining.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started {
		return
	}
	wp.started = true

	runCtx, cancel := context.WithCancel(ctx)
	wp.runCtx = runCtx
	wp.cancel = cancel

	for i := 0; i < wp.cfg.MinWorkers; i++ {
		wp.spawn(runCtx, true)
	}
	if wp.cfg.MonitorInterval > 0 {
		go wp.monitor(runCtx)
	}
}

func (wp *WorkerPool) spawn(ctx context.Context, permanent bool) {
	wp.workers.Add(1)
	wp.wg.Add(1)
	go wp.worker(ctx, permanent)
}

func (wp *WorkerPool) worker(ctx context.Context, permanent bool) {
	defer wp.wg.Done()
	defer wp.workers.Add(-1)

	idle := wp.cfg.IdleTimeout
	if permanent || idle <= 0 {
		for {
			select {
			case <-ctx.Done():
				return
			case task, ok := <-wp.taskQueue:
				if !ok {
					return
				}
				task(ctx)
				wp.completed.Add(1)
			}
		}
	}

	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case task, ok := <-wp.taskQueue:
			if !ok {
				return
			}
			task(ctx)
			wp.completed.Add(1)
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idle)
		}
	}
}

// Submit enqueues task. If the queue is full and the pool is already at
// MaxWorkers, it returns ErrQueueFull rather than blocking (the abort
// rejection policy).
func (wp *WorkerPool) Submit(task Task) error {
	select {
	case wp.taskQueue <- task:
		wp.maybeGrow()
		return nil
	default:
	}

	if wp.workers.Load() < int64(wp.cfg.MaxWorkers) {
		wp.mu.Lock()
		ctx := wp.runCtx
		wp.mu.Unlock()
		if ctx != nil {
			wp.spawn(ctx, false)
			wp.taskQueue <- task
			return nil
		}
	}
	return ErrQueueFull
}

// maybeGrow spins up an extra transient worker when the queue is carrying a
// backlog and the pool has headroom below MaxWorkers.
func (wp *WorkerPool) maybeGrow() {
	if len(wp.taskQueue) == 0 || wp.workers.Load() >= int64(wp.cfg.MaxWorkers) {
		return
	}
	wp.mu.Lock()
	ctx := wp.runCtx
	wp.mu.Unlock()
	if ctx != nil {
		wp.spawn(ctx, false)
	}
}

func (wp *WorkerPool) monitor(ctx context.Context) {
	ticker := time.NewTicker(wp.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.L().Info("worker pool status",
				"workers", wp.workers.Load(),
				"queued", len(wp.taskQueue),
				"queue_capacity", cap(wp.taskQueue),
				"completed", wp.completed.Load())
		}
	}
}

// Shutdown stops accepting new work implicitly (callers should stop calling
// Submit) and waits up to DrainTimeout for the queue to empty and in-flight
// tasks to finish. If the deadline passes first, it cancels the workers'
// context, which unblocks them mid-task-boundary, and returns false.
func (wp *WorkerPool) Shutdown() bool {
	close(wp.taskQueue)

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	timeout := wp.cfg.DrainTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		if wp.cancel != nil {
			wp.cancel()
		}
		<-done
		return false
	}
}

// Stop is kept for callers that only need a blocking, non-graceful stop.
func (wp *WorkerPool) Stop() {
	wp.Shutdown()
}
