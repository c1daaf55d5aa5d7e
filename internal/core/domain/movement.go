package domain

import (
	"time"

	"github.com/google/uuid"
)

type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Movement is one append-only audit record of a stock change. Entries are
// never mutated or deleted; Quantity is always positive (adjustments store
// the absolute delta).
type Movement struct {
	ID          string
	ProductID   string
	Type        MovementType
	Quantity    int
	Reference   string // opaque caller-supplied identifier, stored verbatim
	PerformedBy Actor
	Notes       string
	CreatedAt   time.Time
}

func NewMovement(productID string, typ MovementType, quantity int, reference string, performedBy Actor, notes string) Movement {
	return Movement{
		ID:          uuid.NewString(),
		ProductID:   productID,
		Type:        typ,
		Quantity:    quantity,
		Reference:   reference,
		PerformedBy: performedBy,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}
}
