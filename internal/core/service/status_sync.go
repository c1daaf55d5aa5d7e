package service

import (
	"context"

	"github.com/quickcart/stock-ledger/internal/core/domain"
)

// syncOrderable derives the product's orderable flag from the ledger after a
// mutation. Best-effort: a flag write failure is logged and never fails the
// stock operation that triggered it.
//
// Adjust, reserve, release, fulfill and finalize trigger the sync; add and
// remove do not. The asymmetry matches the behavior this service replaced
// and is kept until product decides otherwise.
func (s *StockService) syncOrderable(ctx context.Context, led domain.Ledger) {
	if err := s.status.SetOrderable(ctx, led.ProductID, led.Orderable()); err != nil {
		s.log.WarnContext(ctx, "orderable flag sync failed",
			"product_id", led.ProductID, "orderable", led.Orderable(), "error", err)
	}
}
