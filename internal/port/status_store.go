package port

import "context"

// StatusStore persists the product's orderable flag.
type StatusStore interface {
	// SetOrderable writes the flag, persisting only when the value changes.
	SetOrderable(ctx context.Context, productID string, orderable bool) error
}
