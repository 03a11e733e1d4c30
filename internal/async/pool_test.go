package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Submit_RunsJobAndReturnsItsError(t *testing.T) {
	// Given: a pool with a single worker
	p := NewPool(1, 4)
	defer p.Shutdown()

	// When: submitting a job that fails
	wantErr := errors.New("boom")
	err := p.Submit(context.Background(), func(ctx context.Context) error {
		return wantErr
	})

	// Then: the caller observes the job's own error
	assert.ErrorIs(t, err, wantErr)
}

func TestPool_CapsConcurrency(t *testing.T) {
	// Given: a pool with two workers and five slow jobs
	p := NewPool(2, 8)
	defer p.Shutdown()

	var inFlight, maxInFlight int64
	job := func(ctx context.Context) error {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&maxInFlight)
			if cur <= old || atomic.CompareAndSwapInt64(&maxInFlight, old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return nil
	}

	// When: running more jobs than workers concurrently
	results := make([]<-chan error, 0, 5)
	for i := 0; i < 5; i++ {
		results = append(results, p.Go(context.Background(), job))
	}
	for _, r := range results {
		require.NoError(t, <-r)
	}

	// Then: never more than two jobs ran at once
	assert.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(2))
}

func TestPool_Submit_RespectsContextCancellation(t *testing.T) {
	// Given: a pool whose single worker is busy
	p := NewPool(1, 0)
	defer p.Shutdown()
	block := make(chan struct{})
	p.Go(context.Background(), func(ctx context.Context) error {
		<-block
		return nil
	})

	// When: submitting with an already-cancelled context while the
	// worker is occupied and the queue has no spare capacity
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Submit(ctx, func(ctx context.Context) error { return nil })

	// Then: Submit returns the cancellation error rather than blocking forever
	assert.ErrorIs(t, err, context.Canceled)
	close(block)
}

func TestPool_Shutdown_RejectsFurtherSubmissions(t *testing.T) {
	// Given: a pool that has been shut down
	p := NewPool(1, 1)
	p.Shutdown()

	// When: submitting another job
	err := p.Submit(context.Background(), func(ctx context.Context) error { return nil })

	// Then: it is rejected rather than deadlocking
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_Stats_TracksOutcomes(t *testing.T) {
	// Given: a pool that runs one success and one failure
	p := NewPool(1, 4)
	defer p.Shutdown()

	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error { return nil }))
	require.Error(t, p.Submit(context.Background(), func(ctx context.Context) error { return errors.New("fail") }))

	// When: reading the stats snapshot
	stats := p.Stats()

	// Then: submitted/completed/failed reflect both jobs
	assert.Equal(t, int64(2), stats.Submitted)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, 1, stats.Workers)
}
