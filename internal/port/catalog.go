package port

import "context"

// Catalog is the narrow view of the product catalog this core needs: enough
// to seed a ledger row lazily on first add/adjust.
type Catalog interface {
	// ProductSKU returns the SKU of a catalog product, or domain.ErrNotFound.
	ProductSKU(ctx context.Context, productID string) (string, error)
}
