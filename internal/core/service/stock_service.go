package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quickcart/stock-ledger/internal/core/domain"
	"github.com/quickcart/stock-ledger/internal/port"
)

// StockService exposes the stock ledger operations consumed by checkout,
// admin adjustment endpoints and bulk import jobs. Every mutating operation
// is one atomic ledger update plus at most one movement record; the caller
// blocks until the storage round trip completes.
//
// Multi-item reservations are not atomic as a group: callers sequence the
// per-item calls and compensate with ReleaseReservedStock on partial failure.
type StockService struct {
	ledger    port.LedgerStore
	movements port.MovementLog
	guard     port.LockRegistry
	catalog   port.Catalog
	status    port.StatusStore
	publisher port.MovementPublisher // optional, nil disables publishing
	log       *slog.Logger
}

func NewStockService(
	ledger port.LedgerStore,
	movements port.MovementLog,
	guard port.LockRegistry,
	catalog port.Catalog,
	status port.StatusStore,
	publisher port.MovementPublisher,
	log *slog.Logger,
) *StockService {
	return &StockService{
		ledger:    ledger,
		movements: movements,
		guard:     guard,
		catalog:   catalog,
		status:    status,
		publisher: publisher,
		log:       log,
	}
}

// AddStock increments available stock, creating the ledger row from the
// catalog on first use. Does not touch the orderable flag.
func (s *StockService) AddStock(ctx context.Context, productID string, qty int, reference string, performedBy domain.Actor, notes string) (domain.Ledger, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return domain.Ledger{}, err
	}
	if err := s.ensureLedgerRow(ctx, productID); err != nil {
		return domain.Ledger{}, err
	}

	mv := domain.NewMovement(productID, domain.MovementIn, qty, reference, performedBy, notes)
	led, err := s.ledger.AddAvailable(ctx, productID, qty, mv)
	if err != nil {
		return domain.Ledger{}, err
	}

	s.publish(ctx, mv)
	return led, nil
}

// RemoveStock decrements available stock if enough is on hand. Does not
// touch the orderable flag.
func (s *StockService) RemoveStock(ctx context.Context, productID string, qty int, reference string, performedBy domain.Actor, notes string) (domain.Ledger, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return domain.Ledger{}, err
	}

	mv := domain.NewMovement(productID, domain.MovementOut, qty, reference, performedBy, notes)
	led, err := s.ledger.RemoveAvailable(ctx, productID, qty, mv)
	if err != nil {
		return domain.Ledger{}, err
	}

	s.publish(ctx, mv)
	return led, nil
}

// AdjustStock sets available to an absolute value, creating the ledger row
// from the catalog on first use. The movement records the absolute delta.
func (s *StockService) AdjustStock(ctx context.Context, productID string, newAvailable int, reference string, performedBy domain.Actor, notes string) (domain.Ledger, error) {
	if productID == "" {
		return domain.Ledger{}, fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}
	if newAvailable < 0 {
		return domain.Ledger{}, fmt.Errorf("%w: quantity must not be negative, got %d", domain.ErrInvalidArgument, newAvailable)
	}
	if err := s.ensureLedgerRow(ctx, productID); err != nil {
		return domain.Ledger{}, err
	}

	// Quantity is filled in by the store once the old value is known.
	mv := domain.NewMovement(productID, domain.MovementAdjustment, 0, reference, performedBy, notes)
	led, mv, err := s.ledger.Adjust(ctx, productID, newAvailable, mv)
	if err != nil {
		return domain.Ledger{}, err
	}

	s.syncOrderable(ctx, led)
	if mv.Quantity > 0 {
		s.publish(ctx, mv)
	}
	return led, nil
}

// ReserveStock moves stock from available to reserved for an in-flight
// order. The decrement and the availability check happen in one storage
// round trip; this is the sole overselling defense. When userID is given,
// the advisory lock for (userID, productID) rejects duplicate concurrent
// requests from the same user and is always released before returning.
func (s *StockService) ReserveStock(ctx context.Context, productID string, qty int, reference, userID string) (domain.Ledger, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return domain.Ledger{}, err
	}

	if userID != "" {
		if err := s.guard.Acquire(ctx, userID, productID); err != nil {
			return domain.Ledger{}, err
		}
		defer func() {
			if err := s.guard.Release(ctx, userID, productID); err != nil {
				s.log.WarnContext(ctx, "advisory lock release failed",
					"user_id", userID, "product_id", productID, "error", err)
			}
		}()
	}

	performedBy := domain.UnknownActor()
	if userID != "" {
		performedBy = domain.UserActor(userID)
	}
	mv := domain.NewMovement(productID, domain.MovementOut, qty, reference, performedBy, "reserved")
	led, err := s.ledger.Reserve(ctx, productID, qty, mv)
	if err != nil {
		return domain.Ledger{}, err
	}

	s.syncOrderable(ctx, led)
	s.publish(ctx, mv)
	return led, nil
}

// ReleaseReservedStock returns reserved stock to available, e.g. on order
// cancellation.
func (s *StockService) ReleaseReservedStock(ctx context.Context, productID string, qty int, reference string) (domain.Ledger, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return domain.Ledger{}, err
	}

	mv := domain.NewMovement(productID, domain.MovementIn, qty, reference, domain.SystemActor(), "released")
	led, err := s.ledger.Release(ctx, productID, qty, mv)
	if err != nil {
		return domain.Ledger{}, err
	}

	s.syncOrderable(ctx, led)
	s.publish(ctx, mv)
	return led, nil
}

// FulfillReservedStock drops reserved quantity on shipment. Available is
// untouched (the unit left inventory when it was reserved) and no movement
// is written: the reservation's OUT entry already recorded the departure.
func (s *StockService) FulfillReservedStock(ctx context.Context, productID string, qty int, reference string) (domain.Ledger, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return domain.Ledger{}, err
	}

	led, err := s.ledger.Fulfill(ctx, productID, qty)
	if err != nil {
		return domain.Ledger{}, err
	}

	s.syncOrderable(ctx, led)
	return led, nil
}

// FinalizeStock is FulfillReservedStock with a movement record. It exists
// separately because payment confirmation and shipment are different
// real-world triggers and the log must record the true cause.
func (s *StockService) FinalizeStock(ctx context.Context, productID string, qty int, reference string) (domain.Ledger, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return domain.Ledger{}, err
	}

	mv := domain.NewMovement(productID, domain.MovementOut, qty, reference, domain.SystemActor(), "finalized after payment")
	led, err := s.ledger.Finalize(ctx, productID, qty, mv)
	if err != nil {
		return domain.Ledger{}, err
	}

	s.syncOrderable(ctx, led)
	s.publish(ctx, mv)
	return led, nil
}

// LegacyFulfillmentFallback decrements available directly for orders placed
// before the ledger existed, where no reservation was ever made. Invoked by
// order-status transition logic when fulfill reports nothing reserved; not
// part of the reservation contract.
func (s *StockService) LegacyFulfillmentFallback(ctx context.Context, productID string, qty int, reference string) (domain.Ledger, error) {
	if err := validateQuantity(productID, qty); err != nil {
		return domain.Ledger{}, err
	}

	mv := domain.NewMovement(productID, domain.MovementOut, qty, reference, domain.SystemActor(), "legacy fulfillment without reservation")
	led, err := s.ledger.RemoveAvailable(ctx, productID, qty, mv)
	if err != nil {
		return domain.Ledger{}, err
	}

	s.syncOrderable(ctx, led)
	s.publish(ctx, mv)
	return led, nil
}

// GetInventorySummary returns the current ledger row for a product.
func (s *StockService) GetInventorySummary(ctx context.Context, productID string) (domain.Ledger, error) {
	if productID == "" {
		return domain.Ledger{}, fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}
	return s.ledger.Get(ctx, productID)
}

// GetLowStockItems returns products at or below the threshold. A threshold
// <= 0 compares each product against its own reorder level.
func (s *StockService) GetLowStockItems(ctx context.Context, threshold int) ([]domain.Ledger, error) {
	return s.ledger.ListLowStock(ctx, threshold)
}

// GetOutOfStockItems returns products with zero available stock.
func (s *StockService) GetOutOfStockItems(ctx context.Context) ([]domain.Ledger, error) {
	return s.ledger.ListOutOfStock(ctx)
}

// ListMovementsByProduct returns a product's audit trail, newest first.
func (s *StockService) ListMovementsByProduct(ctx context.Context, productID string, limit, offset int) ([]domain.Movement, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}
	return s.movements.ListByProduct(ctx, productID, limit, offset)
}

// ListMovementsByType returns movements of one type, newest first.
func (s *StockService) ListMovementsByType(ctx context.Context, typ domain.MovementType, limit, offset int) ([]domain.Movement, error) {
	switch typ {
	case domain.MovementIn, domain.MovementOut, domain.MovementAdjustment:
	default:
		return nil, fmt.Errorf("%w: unknown movement type %q", domain.ErrInvalidArgument, typ)
	}
	return s.movements.ListByType(ctx, typ, limit, offset)
}

// ListRecentMovements returns movements across all products, newest first.
func (s *StockService) ListRecentMovements(ctx context.Context, limit, offset int) ([]domain.Movement, error) {
	return s.movements.ListRecent(ctx, limit, offset)
}

// ensureLedgerRow creates the ledger row from the catalog if it does not
// exist yet. Returns domain.ErrNotFound when the product has no catalog
// entry to seed from.
func (s *StockService) ensureLedgerRow(ctx context.Context, productID string) error {
	_, err := s.ledger.Get(ctx, productID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	sku, err := s.catalog.ProductSKU(ctx, productID)
	if err != nil {
		return err
	}
	return s.ledger.Create(ctx, productID, sku)
}

func (s *StockService) publish(ctx context.Context, mv domain.Movement) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMovement(ctx, mv); err != nil {
		s.log.WarnContext(ctx, "movement publish failed",
			"movement_id", mv.ID, "product_id", mv.ProductID, "error", err)
	}
}

func validateQuantity(productID string, qty int) error {
	if productID == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrInvalidArgument, qty)
	}
	return nil
}
