package shared

import (
	"context"
	"time"
)

// RunLock is a coarse mutual-exclusion lock for long-running jobs such as
// reconciliation scans. Acquire is first-wins: it returns true only for the
// caller that obtained the lock. The TTL bounds how long a crashed holder
// can block the next run.
type RunLock interface {
	// Acquire attempts to take the named lock. Returns true if this caller
	// now holds it, false if another holder exists.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees the named lock. Releasing a lock that is not held is
	// not an error.
	Release(ctx context.Context, key string) error

	// Close releases resources held by the lock backend
	Close() error
}
