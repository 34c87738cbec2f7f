package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRunLock_AcquireRelease(t *testing.T) {
	lock := NewInMemoryRunLock()
	defer lock.Close()
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second caller loses while held
	acquired, err = lock.Acquire(ctx, "scan", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// A different key is independent
	acquired, err = lock.Acquire(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, lock.Release(ctx, "scan"))

	acquired, err = lock.Acquire(ctx, "scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestInMemoryRunLock_ExpiredHolderLosesLock(t *testing.T) {
	lock := NewInMemoryRunLock()
	defer lock.Close()
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "scan", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	acquired, err = lock.Acquire(ctx, "scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestInMemoryRunLock_SingleWinnerUnderContention(t *testing.T) {
	lock := NewInMemoryRunLock()
	defer lock.Close()
	ctx := context.Background()

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, err := lock.Acquire(ctx, "scan", time.Minute)
			require.NoError(t, err)
			if acquired {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&winners))
}

func TestInMemoryRunLock_ReleaseUnheldIsNoop(t *testing.T) {
	lock := NewInMemoryRunLock()
	defer lock.Close()

	assert.NoError(t, lock.Release(context.Background(), "never-held"))
}

func TestInMemoryRunLock_CloseIsIdempotent(t *testing.T) {
	lock := NewInMemoryRunLock()
	assert.NoError(t, lock.Close())
	assert.NoError(t, lock.Close())
}

func TestInMemoryRunLock_CleanupSweepsExpired(t *testing.T) {
	lock := NewInMemoryRunLock()
	defer lock.Close()
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "a", time.Nanosecond)
	require.NoError(t, err)
	_, err = lock.Acquire(ctx, "b", time.Minute)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	lock.cleanup()

	assert.Equal(t, 1, lock.Size())
}
