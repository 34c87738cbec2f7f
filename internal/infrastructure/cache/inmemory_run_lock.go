package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// lockEntry records a held lock and when it lapses
type lockEntry struct {
	expiresAt time.Time
}

// InMemoryRunLock implements RunLock with a process-local map. Suitable for
// single-instance deployments and testing; locks are not shared across
// processes.
type InMemoryRunLock struct {
	mu        sync.Mutex
	locks     map[string]lockEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryRunLock creates an in-memory run lock with a background sweep
// of expired entries
func NewInMemoryRunLock() *InMemoryRunLock {
	l := &InMemoryRunLock{
		locks:    make(map[string]lockEntry),
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

// Acquire takes the named lock if it is free or its previous holder's TTL
// has lapsed
func (l *InMemoryRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, held := l.locks[key]; held && time.Now().Before(e.expiresAt) {
		return false, nil
	}

	l.locks[key] = lockEntry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// Release frees the named lock
func (l *InMemoryRunLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *InMemoryRunLock) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

func (l *InMemoryRunLock) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *InMemoryRunLock) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, e := range l.locks {
		if now.After(e.expiresAt) {
			delete(l.locks, key)
		}
	}
}

// Size returns the number of held locks (for testing/monitoring)
func (l *InMemoryRunLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ shared.RunLock = (*InMemoryRunLock)(nil)
