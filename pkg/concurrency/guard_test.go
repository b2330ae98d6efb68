package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterTryAcquire(t *testing.T) {
	l := NewLimiter(2)
	require.NoError(t, l.TryAcquire())
	require.NoError(t, l.TryAcquire())
	assert.ErrorIs(t, l.TryAcquire(), ErrBusy)
	assert.Equal(t, 2, l.Active())

	l.Release()
	assert.Equal(t, 1, l.Active())
	require.NoError(t, l.TryAcquire())
}

func TestLimiterReleaseWithoutAcquire(t *testing.T) {
	l := NewLimiter(1)
	l.Release()
	assert.Equal(t, 0, l.Active())
	require.NoError(t, l.TryAcquire())
	assert.ErrorIs(t, l.TryAcquire(), ErrBusy)
}

func TestLimiterMinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, NewLimiter(0).Cap())
}

func TestLimiterAcquireHonoursContext(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)
}

func TestLimiterExecute(t *testing.T) {
	l := NewLimiter(1)
	started := make(chan struct{})
	finish := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = l.Execute(func() error {
			close(started)
			<-finish
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, l.Execute(func() error { return nil }), ErrBusy)
	close(finish)
	wg.Wait()

	assert.NoError(t, l.Execute(func() error { return nil }))
	assert.Equal(t, 0, l.Active())
}
