package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickcart/stock-ledger/internal/core/domain"
)

// PostgresStore is the pgx counterpart of MySQLStore for deployments already
// running Postgres. Same contract, same single-round-trip guarded UPDATEs.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Create(ctx context.Context, productID, sku string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO stock_ledger (product_id, sku, quantity_available, quantity_reserved, reorder_level)
		VALUES ($1, $2, 0, 0, 0)
		ON CONFLICT (product_id) DO NOTHING`,
		productID, sku,
	)
	if err != nil {
		return fmt.Errorf("create ledger row: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, productID string) (domain.Ledger, error) {
	return scanPgLedger(p.pool.QueryRow(ctx, `
		SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
		FROM stock_ledger WHERE product_id = $1`, productID))
}

func (p *PostgresStore) AddAvailable(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return p.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_available = quantity_available + $1, last_updated = now()
		WHERE product_id = $2`,
		[]any{qty, productID},
		func(tx pgx.Tx) error { return domain.ErrNotFound },
	)
}

func (p *PostgresStore) RemoveAvailable(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return p.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_available = quantity_available - $1, last_updated = now()
		WHERE product_id = $2 AND quantity_available >= $1`,
		[]any{qty, productID},
		func(tx pgx.Tx) error {
			return &domain.InsufficientStockError{
				Available: p.availableTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

func (p *PostgresStore) Adjust(ctx context.Context, productID string, newAvailable int, mv domain.Movement) (domain.Ledger, domain.Movement, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Ledger{}, mv, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var old int
	err = tx.QueryRow(ctx, `
		SELECT quantity_available FROM stock_ledger WHERE product_id = $1 FOR UPDATE`,
		productID,
	).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ledger{}, mv, domain.ErrNotFound
	}
	if err != nil {
		return domain.Ledger{}, mv, fmt.Errorf("lock ledger row: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE stock_ledger
		SET quantity_available = $1, last_updated = now()
		WHERE product_id = $2`,
		newAvailable, productID,
	)
	if err != nil {
		return domain.Ledger{}, mv, fmt.Errorf("adjust ledger: %w", err)
	}

	mv.Quantity = newAvailable - old
	if mv.Quantity < 0 {
		mv.Quantity = -mv.Quantity
	}
	if mv.Quantity > 0 {
		if err := insertPgMovement(ctx, tx, mv); err != nil {
			return domain.Ledger{}, mv, err
		}
	}

	led, err := pgLedgerTx(ctx, tx, productID)
	if err != nil {
		return domain.Ledger{}, mv, err
	}
	return led, mv, tx.Commit(ctx)
}

func (p *PostgresStore) Reserve(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return p.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_available = quantity_available - $1,
		    quantity_reserved = quantity_reserved + $1,
		    last_updated = now()
		WHERE product_id = $2 AND quantity_available >= $1`,
		[]any{qty, productID},
		func(tx pgx.Tx) error {
			return &domain.InsufficientStockError{
				Available: p.availableTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

func (p *PostgresStore) Release(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return p.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_reserved = quantity_reserved - $1,
		    quantity_available = quantity_available + $1,
		    last_updated = now()
		WHERE product_id = $2 AND quantity_reserved >= $1`,
		[]any{qty, productID},
		func(tx pgx.Tx) error {
			return &domain.InsufficientReservedStockError{
				Reserved:  p.reservedTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

func (p *PostgresStore) Fulfill(ctx context.Context, productID string, qty int) (domain.Ledger, error) {
	return p.mutate(ctx, productID, nil, `
		UPDATE stock_ledger
		SET quantity_reserved = quantity_reserved - $1, last_updated = now()
		WHERE product_id = $2 AND quantity_reserved >= $1`,
		[]any{qty, productID},
		func(tx pgx.Tx) error {
			return &domain.InsufficientReservedStockError{
				Reserved:  p.reservedTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

func (p *PostgresStore) Finalize(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return p.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_reserved = quantity_reserved - $1, last_updated = now()
		WHERE product_id = $2 AND quantity_reserved >= $1`,
		[]any{qty, productID},
		func(tx pgx.Tx) error {
			return &domain.InsufficientReservedStockError{
				Reserved:  p.reservedTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

func (p *PostgresStore) mutate(ctx context.Context, productID string, mv *domain.Movement, query string, args []any, onMiss func(pgx.Tx) error) (domain.Ledger, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("update ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Ledger{}, onMiss(tx)
	}

	if mv != nil {
		if err := insertPgMovement(ctx, tx, *mv); err != nil {
			return domain.Ledger{}, err
		}
	}

	led, err := pgLedgerTx(ctx, tx, productID)
	if err != nil {
		return domain.Ledger{}, err
	}
	return led, tx.Commit(ctx)
}

func (p *PostgresStore) ListLowStock(ctx context.Context, threshold int) ([]domain.Ledger, error) {
	if threshold > 0 {
		return p.listLedgers(ctx, `
			SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
			FROM stock_ledger WHERE quantity_available <= $1
			ORDER BY quantity_available ASC`, threshold)
	}
	return p.listLedgers(ctx, `
		SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
		FROM stock_ledger WHERE quantity_available <= reorder_level
		ORDER BY quantity_available ASC`)
}

func (p *PostgresStore) ListOutOfStock(ctx context.Context) ([]domain.Ledger, error) {
	return p.listLedgers(ctx, `
		SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
		FROM stock_ledger WHERE quantity_available = 0
		ORDER BY last_updated DESC`)
}

func (p *PostgresStore) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]domain.Movement, error) {
	return p.listMovements(ctx, `
		SELECT id, product_id, type, quantity, reference, performed_by, notes, created_at
		FROM stock_movements WHERE product_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		productID, normalizeLimit(limit), offset)
}

func (p *PostgresStore) ListByType(ctx context.Context, typ domain.MovementType, limit, offset int) ([]domain.Movement, error) {
	return p.listMovements(ctx, `
		SELECT id, product_id, type, quantity, reference, performed_by, notes, created_at
		FROM stock_movements WHERE type = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(typ), normalizeLimit(limit), offset)
}

func (p *PostgresStore) ListRecent(ctx context.Context, limit, offset int) ([]domain.Movement, error) {
	return p.listMovements(ctx, `
		SELECT id, product_id, type, quantity, reference, performed_by, notes, created_at
		FROM stock_movements
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		normalizeLimit(limit), offset)
}

func (p *PostgresStore) ProductSKU(ctx context.Context, productID string) (string, error) {
	var sku string
	err := p.pool.QueryRow(ctx,
		`SELECT sku FROM products WHERE id = $1`, productID,
	).Scan(&sku)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query product: %w", err)
	}
	return sku, nil
}

func (p *PostgresStore) SetOrderable(ctx context.Context, productID string, orderable bool) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE products SET is_orderable = $1 WHERE id = $2 AND is_orderable <> $1`,
		orderable, productID,
	)
	if err != nil {
		return fmt.Errorf("update orderable flag: %w", err)
	}
	return nil
}

func (p *PostgresStore) listLedgers(ctx context.Context, query string, args ...any) ([]domain.Ledger, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledgers: %w", err)
	}
	defer rows.Close()

	var out []domain.Ledger
	for rows.Next() {
		var led domain.Ledger
		if err := rows.Scan(&led.ProductID, &led.SKU, &led.QuantityAvailable,
			&led.QuantityReserved, &led.ReorderLevel, &led.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		out = append(out, led)
	}
	return out, rows.Err()
}

func (p *PostgresStore) listMovements(ctx context.Context, query string, args ...any) ([]domain.Movement, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var out []domain.Movement
	for rows.Next() {
		var mv domain.Movement
		var typ string
		var performedBy *string
		if err := rows.Scan(&mv.ID, &mv.ProductID, &typ, &mv.Quantity,
			&mv.Reference, &performedBy, &mv.Notes, &mv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		mv.Type = domain.MovementType(typ)
		mv.PerformedBy = actorFromPointer(performedBy)
		out = append(out, mv)
	}
	return out, rows.Err()
}

func (p *PostgresStore) availableTx(ctx context.Context, tx pgx.Tx, productID string) int {
	var available int
	_ = tx.QueryRow(ctx,
		`SELECT quantity_available FROM stock_ledger WHERE product_id = $1`, productID,
	).Scan(&available)
	return available
}

func (p *PostgresStore) reservedTx(ctx context.Context, tx pgx.Tx, productID string) int {
	var reserved int
	_ = tx.QueryRow(ctx,
		`SELECT quantity_reserved FROM stock_ledger WHERE product_id = $1`, productID,
	).Scan(&reserved)
	return reserved
}

func insertPgMovement(ctx context.Context, tx pgx.Tx, mv domain.Movement) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (id, product_id, type, quantity, reference, performed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		mv.ID, mv.ProductID, string(mv.Type), mv.Quantity, mv.Reference,
		actorColumn(mv.PerformedBy), mv.Notes, mv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func pgLedgerTx(ctx context.Context, tx pgx.Tx, productID string) (domain.Ledger, error) {
	return scanPgLedger(tx.QueryRow(ctx, `
		SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
		FROM stock_ledger WHERE product_id = $1`, productID))
}

func scanPgLedger(row pgx.Row) (domain.Ledger, error) {
	var led domain.Ledger
	err := row.Scan(&led.ProductID, &led.SKU, &led.QuantityAvailable,
		&led.QuantityReserved, &led.ReorderLevel, &led.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ledger{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("scan ledger: %w", err)
	}
	return led, nil
}

func actorFromPointer(v *string) domain.Actor {
	switch {
	case v == nil:
		return domain.UnknownActor()
	case *v == "system":
		return domain.SystemActor()
	default:
		return domain.UserActor(*v)
	}
}
