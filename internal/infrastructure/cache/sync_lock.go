package cache

import (
	"context"
	"sync/atomic"
)

// SyncLock guarantees that at most one product sync runs at a time.
//
// TryAcquire never waits: it either takes the lock and returns a release
// function, or reports acquired=false when the lock is already held.
// Release must be called exactly once; extra calls are ignored.
type SyncLock interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// InMemorySyncLock is a process-local SyncLock backed by an atomic flag.
// It does not coordinate separate processes.
type InMemorySyncLock struct {
	held atomic.Bool
}

// NewInMemorySyncLock creates a new, unheld in-memory lock
func NewInMemorySyncLock() *InMemorySyncLock {
	return &InMemorySyncLock{}
}

// TryAcquire takes the lock with a compare-and-swap
func (l *InMemorySyncLock) TryAcquire(context.Context) (func(), bool, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			l.held.Store(false)
		}
	}, true, nil
}

// Held reports whether the lock is currently taken
func (l *InMemorySyncLock) Held() bool {
	return l.held.Load()
}

var _ SyncLock = (*InMemorySyncLock)(nil)
