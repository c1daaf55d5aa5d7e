package port

import (
	"context"

	"github.com/quickcart/stock-ledger/internal/core/domain"
)

// MovementLog is the read side of the audit trail. Writes happen inside
// LedgerStore transactions; the log is history, never current state.
type MovementLog interface {
	// ListByProduct returns movements for one product, newest first.
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]domain.Movement, error)

	// ListByType returns movements of one type, newest first.
	ListByType(ctx context.Context, typ domain.MovementType, limit, offset int) ([]domain.Movement, error)

	// ListRecent returns movements across all products, newest first.
	ListRecent(ctx context.Context, limit, offset int) ([]domain.Movement, error)
}
