package port

import "context"

// LockRegistry is the advisory per-(user, product) lock. It only stops one
// user's duplicate concurrent request; the ledger's own conditional update
// is what prevents overselling across users.
type LockRegistry interface {
	// Acquire takes the lock for (userID, productID). Returns
	// domain.ErrLockConflict if it is already held.
	Acquire(ctx context.Context, userID, productID string) error

	// Release frees the lock. Releasing an unheld lock is a no-op.
	Release(ctx context.Context, userID, productID string) error
}
