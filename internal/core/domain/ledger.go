package domain

import "time"

// Ledger holds the per-product stock counters. It is the source of truth
// for the current balance; the movement log is history only.
type Ledger struct {
	ProductID         string
	SKU               string
	QuantityAvailable int
	QuantityReserved  int
	ReorderLevel      int
	LastUpdated       time.Time
}

// Orderable reports whether the product has stock free to sell.
func (l Ledger) Orderable() bool {
	return l.QuantityAvailable > 0
}
