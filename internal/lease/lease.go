// Package lease provides the time-bounded advisory lock that keeps dispatch
// runs single-flight. Acquisition is optimistic: a holder elsewhere turns the
// caller away immediately instead of blocking it, and the TTL is the safety
// net against a crashed holder never releasing.
package lease

import (
	"context"
	"sync"
	"time"
)

// Lease is an acquire-with-expiry / release lock over some shared store.
type Lease interface {
	// Acquire takes the lease for key if it is free, returning whether it
	// was taken. It never blocks waiting for the current holder.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees the lease if this instance still holds it. Releasing a
	// lease that expired and was re-acquired elsewhere is a no-op.
	Release(ctx context.Context, key string) error
}

// Memory is a single-process Lease. It is used in tests and in deployments
// where exactly one dispatcher process exists; multi-process deployments use
// the Redis implementation.
type Memory struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{expires: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if deadline, held := m.expires[key]; held && now.Before(deadline) {
		return false, nil
	}
	m.expires[key] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expires, key)
	return nil
}
