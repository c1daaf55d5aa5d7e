package port

import (
	"context"

	"github.com/quickcart/stock-ledger/internal/core/domain"
)

// LedgerStore is the atomic storage contract for the per-product counters.
// Every mutating method applies its ledger update and the given movement in
// one transaction: either both commit, or neither does. Conditional methods
// perform the check and the update in a single storage round trip; a failed
// condition returns the typed insufficiency error with zero state change.
type LedgerStore interface {
	// Create inserts a ledger row with zero counters. Creating a row that
	// already exists is a no-op.
	Create(ctx context.Context, productID, sku string) error

	// Get returns the ledger row, or domain.ErrNotFound.
	Get(ctx context.Context, productID string) (domain.Ledger, error)

	// AddAvailable increments available by qty and records the movement.
	AddAvailable(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error)

	// RemoveAvailable decrements available by qty only if available >= qty,
	// recording the movement. Returns *domain.InsufficientStockError
	// otherwise (a missing row counts as zero available).
	RemoveAvailable(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error)

	// Adjust sets available to an absolute value and records the movement
	// with its Quantity set to the absolute delta, computed inside the
	// transaction. When the delta is zero no movement is written. The
	// returned movement carries the final quantity.
	Adjust(ctx context.Context, productID string, newAvailable int, mv domain.Movement) (domain.Ledger, domain.Movement, error)

	// Reserve moves qty from available to reserved only if available >= qty,
	// recording the movement. Returns *domain.InsufficientStockError
	// otherwise (a missing row counts as zero available).
	Reserve(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error)

	// Release moves qty from reserved back to available only if
	// reserved >= qty, recording the movement. Returns
	// *domain.InsufficientReservedStockError otherwise.
	Release(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error)

	// Fulfill decrements reserved by qty only if reserved >= qty. Available
	// is untouched (the unit left inventory at reservation time) and no
	// movement is written. Returns *domain.InsufficientReservedStockError
	// otherwise.
	Fulfill(ctx context.Context, productID string, qty int) (domain.Ledger, error)

	// Finalize is Fulfill plus a movement record.
	Finalize(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error)

	// ListLowStock returns rows with available <= threshold. A threshold
	// <= 0 compares each row against its own reorder level instead.
	ListLowStock(ctx context.Context, threshold int) ([]domain.Ledger, error)

	// ListOutOfStock returns rows with zero available.
	ListOutOfStock(ctx context.Context) ([]domain.Ledger, error)
}
