// Package workerpool configures the bounded pool that dispatches bus sends
// for the correlator and the cache/freshness tiers, per spec §4.2. It is a
// thin domain wrapper over pkg/concurrency.WorkerPool: sizing, queueing,
// idle-reaping and graceful drain all live there; this package only carries
// the service's configured numbers and a typed Submit.
package workerpool

import (
	"context"
	"time"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/config"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/concurrency"
)

// Pool dispatches bus-publish work with a bounded, elastic worker set.
type Pool struct {
	inner *concurrency.WorkerPool
}

// New builds a Pool from pool.* configuration.
func New(cfg config.PoolConfig) *Pool {
	return &Pool{inner: concurrency.NewWorkerPool(concurrency.Config{
		MinWorkers:      cfg.Min,
		MaxWorkers:      cfg.Max,
		QueueSize:       cfg.Queue,
		IdleTimeout:     time.Duration(cfg.IdleSec) * time.Second,
		MonitorInterval: 30 * time.Second,
		DrainTimeout:    60 * time.Second,
	})}
}

// Start launches the minimum worker count; ctx bounds every worker's
// lifetime.
func (p *Pool) Start(ctx context.Context) { p.inner.Start(ctx) }

// Submit hands fn to the pool. It returns concurrency.ErrQueueFull if the
// queue is full and the pool is already running at its configured maximum
// — the abort rejection policy spec §4.2 calls for.
func (p *Pool) Submit(fn func(ctx context.Context)) error {
	return p.inner.Submit(concurrency.Task(fn))
}

// Shutdown drains in-flight and queued work for up to 60s, then cancels any
// stragglers. It reports whether the pool drained cleanly.
func (p *Pool) Shutdown() bool { return p.inner.Shutdown() }
