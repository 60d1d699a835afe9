package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provis-io/provis/pkg/schema"
)

func TestWorkerPool_RunsSubmittedWork(t *testing.T) {
	p := NewWorkerPool(2, 8)
	defer p.Shutdown()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func(ctx context.Context) {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int64(5), counter.Load())
	assert.Equal(t, int64(5), p.Metrics().Completed)
}

func TestWorkerPool_RejectsWhenQueueFull(t *testing.T) {
	p := NewWorkerPool(1, 0)
	defer p.Shutdown()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		<-block
	}))
	<-started

	// The single worker is busy and the queue holds nothing.
	err := p.Submit(func(ctx context.Context) {})
	require.Error(t, err)

	var pe *schema.ProvisError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, schema.ErrCodeQueueFull, pe.Code)
	assert.Equal(t, int64(1), p.Metrics().Rejected)

	close(block)
}

func TestWorkerPool_QueueAbsorbsBurst(t *testing.T) {
	p := NewWorkerPool(1, 2)
	defer p.Shutdown()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		<-block
	}))
	<-started

	// Two fit in the queue, the third is rejected.
	require.NoError(t, p.Submit(func(ctx context.Context) {}))
	require.NoError(t, p.Submit(func(ctx context.Context) {}))
	require.Error(t, p.Submit(func(ctx context.Context) {}))

	close(block)
}

func TestWorkerPool_ShutdownRejectsAndDrains(t *testing.T) {
	p := NewWorkerPool(2, 4)

	var done atomic.Int64
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
		}))
	}

	p.Shutdown()
	assert.Equal(t, int64(4), done.Load(), "shutdown waits for queued work")

	err := p.Submit(func(ctx context.Context) {})
	require.Error(t, err)
}

func TestWorkerPool_RecoversFromPanic(t *testing.T) {
	p := NewWorkerPool(1, 4)
	defer p.Shutdown()

	require.NoError(t, p.Submit(func(ctx context.Context) { panic("boom") }))

	ok := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) { close(ok) }))

	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
	assert.Equal(t, int64(1), p.Metrics().Panics)
}
