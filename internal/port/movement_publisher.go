package port

import (
	"context"

	"github.com/quickcart/stock-ledger/internal/core/domain"
)

// MovementPublisher streams committed movements to interested consumers.
// Publishing is best-effort: a failure must never fail the stock operation
// that produced the movement.
type MovementPublisher interface {
	PublishMovement(ctx context.Context, mv domain.Movement) error
}
