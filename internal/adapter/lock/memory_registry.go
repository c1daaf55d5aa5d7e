package lock

import (
	"context"
	"sync"
	"time"

	"github.com/quickcart/stock-ledger/internal/core/domain"
)

// DefaultTTL bounds how long a crashed caller can hold a key.
const DefaultTTL = 30 * time.Second

type lockKey struct {
	userID    string
	productID string
}

// MemoryRegistry is the in-process advisory lock map. It is a single-instance
// optimization only: in a horizontally scaled deployment each instance has
// its own map, so it makes no cross-instance guarantee (use RedisRegistry
// there). The clock is injected so expiry is testable without real timers.
type MemoryRegistry struct {
	mu   sync.Mutex
	held map[lockKey]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryRegistry(ttl time.Duration, now func() time.Time) *MemoryRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryRegistry{
		held: make(map[lockKey]time.Time),
		ttl:  ttl,
		now:  now,
	}
}

// Acquire is an atomic test-and-set. An entry past its TTL counts as free.
func (r *MemoryRegistry) Acquire(ctx context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := lockKey{userID: userID, productID: productID}
	now := r.now()
	if acquiredAt, ok := r.held[key]; ok && now.Sub(acquiredAt) < r.ttl {
		return domain.ErrLockConflict
	}
	r.held[key] = now
	return nil
}

// Release frees the lock; releasing an unheld key is a no-op.
func (r *MemoryRegistry) Release(ctx context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.held, lockKey{userID: userID, productID: productID})
	return nil
}

// Sweep drops every entry past its TTL and returns how many were removed.
func (r *MemoryRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for key, acquiredAt := range r.held {
		if now.Sub(acquiredAt) >= r.ttl {
			delete(r.held, key)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps on the given interval until ctx is cancelled.
func (r *MemoryRegistry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
