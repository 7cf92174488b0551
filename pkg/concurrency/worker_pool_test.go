package concurrency

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsSubmittedTasks(t *testing.T) {
	pool := NewWorkerPool(Config{MinWorkers: 2, MaxWorkers: 2, QueueSize: 10})
	pool.Start(context.Background())

	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) { ran.Add(1) }))
	}

	require.Eventually(t, func() bool { return ran.Load() == 5 }, time.Second, time.Millisecond)
	assert.True(t, pool.Shutdown())
}

func TestWorkerPool_GrowsAboveMinUnderLoad(t *testing.T) {
	pool := NewWorkerPool(Config{MinWorkers: 1, MaxWorkers: 4, QueueSize: 1})
	pool.Start(context.Background())

	release := make(chan struct{})
	block := func(ctx context.Context) { <-release }

	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(block))
	}

	require.Eventually(t, func() bool { return pool.workers.Load() > 1 }, time.Second, time.Millisecond)
	close(release)
	pool.Shutdown()
}

func TestWorkerPool_RejectsWhenFull(t *testing.T) {
	pool := NewWorkerPool(Config{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1})
	pool.Start(context.Background())

	release := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) { <-release }))
	require.NoError(t, pool.Submit(func(ctx context.Context) { <-release }))

	err := pool.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	pool.Shutdown()
}
