package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-reconstructor/pkg/logger"
)

func TestPoolRunsDispatchedIDs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	pool := NewPool(2, func(ctx context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, id)
		return nil
	}, logger.NewTestLogger())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, pool.Dispatch(context.Background(), id))
	}
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var running, peak int32
	release := make(chan struct{})
	pool := NewPool(2, func(ctx context.Context, id string) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		return nil
	}, logger.NewTestLogger())

	for i := 0; i < 6; i++ {
		require.NoError(t, pool.Dispatch(context.Background(), "doc"))
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestPoolDispatchDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, func(ctx context.Context, id string) error {
		<-block
		return nil
	}, logger.NewTestLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = pool.Dispatch(context.Background(), "doc")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked")
	}
	close(block)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPoolOutlivesCallerContext(t *testing.T) {
	started := make(chan struct{})
	var handlerErr error
	pool := NewPool(1, func(ctx context.Context, id string) error {
		close(started)
		time.Sleep(20 * time.Millisecond)
		handlerErr = ctx.Err()
		return nil
	}, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Dispatch(ctx, "doc"))
	<-started
	cancel()
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.NoError(t, handlerErr)
}

func TestPoolRecoversAndLogs(t *testing.T) {
	log := logger.NewTestLogger()
	pool := NewPool(1, func(ctx context.Context, id string) error {
		if id == "panic" {
			panic("bad page")
		}
		return errors.New("failed")
	}, log)

	require.NoError(t, pool.Dispatch(context.Background(), "panic"))
	require.NoError(t, pool.Dispatch(context.Background(), "error"))
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.True(t, log.HasMessage("ERROR", "Worker panicked"))
	assert.True(t, log.HasMessage("ERROR", "Background run failed"))
}

func TestPoolShutdown(t *testing.T) {
	pool := NewPool(1, func(ctx context.Context, id string) error {
		<-ctx.Done()
		return ctx.Err()
	}, logger.NewTestLogger())
	require.NoError(t, pool.Dispatch(context.Background(), "doc"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.ErrorIs(t, pool.Dispatch(context.Background(), "late"), ErrPoolClosed)
}
