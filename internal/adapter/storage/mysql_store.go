package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quickcart/stock-ledger/internal/core/domain"
)

// MySQLStore implements the ledger, movement log, catalog and status ports
// on MySQL. Conditional updates ride on a guarded UPDATE whose RowsAffected
// tells success apart from an unmet condition in a single round trip.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) Create(ctx context.Context, productID, sku string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO stock_ledger (product_id, sku, quantity_available, quantity_reserved, reorder_level)
		VALUES (?, ?, 0, 0, 0)
		ON DUPLICATE KEY UPDATE product_id = product_id`,
		productID, sku,
	)
	if err != nil {
		return fmt.Errorf("create ledger row: %w", err)
	}
	return nil
}

func (m *MySQLStore) Get(ctx context.Context, productID string) (domain.Ledger, error) {
	return scanLedger(m.db.QueryRowContext(ctx, `
		SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
		FROM stock_ledger WHERE product_id = ?`, productID))
}

func (m *MySQLStore) AddAvailable(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return m.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_available = quantity_available + ?, last_updated = NOW(6)
		WHERE product_id = ?`,
		[]any{qty, productID},
		func(tx *sql.Tx) error { return domain.ErrNotFound },
	)
}

func (m *MySQLStore) RemoveAvailable(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return m.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_available = quantity_available - ?, last_updated = NOW(6)
		WHERE product_id = ? AND quantity_available >= ?`,
		[]any{qty, productID, qty},
		func(tx *sql.Tx) error {
			return &domain.InsufficientStockError{
				Available: m.availableTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

func (m *MySQLStore) Adjust(ctx context.Context, productID string, newAvailable int, mv domain.Movement) (domain.Ledger, domain.Movement, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Ledger{}, mv, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var old int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity_available FROM stock_ledger WHERE product_id = ? FOR UPDATE`,
		productID,
	).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Ledger{}, mv, domain.ErrNotFound
	}
	if err != nil {
		return domain.Ledger{}, mv, fmt.Errorf("lock ledger row: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE stock_ledger
		SET quantity_available = ?, last_updated = NOW(6)
		WHERE product_id = ?`,
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
		if err := insertMovementTx(ctx, tx, mv); err != nil {
			return domain.Ledger{}, mv, err
		}
	}

	led, err := ledgerTx(ctx, tx, productID)
	if err != nil {
		return domain.Ledger{}, mv, err
	}
	return led, mv, tx.Commit()
}

func (m *MySQLStore) Reserve(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return m.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_available = quantity_available - ?,
		    quantity_reserved = quantity_reserved + ?,
		    last_updated = NOW(6)
		WHERE product_id = ? AND quantity_available >= ?`,
		[]any{qty, qty, productID, qty},
		func(tx *sql.Tx) error {
			return &domain.InsufficientStockError{
				Available: m.availableTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

func (m *MySQLStore) Release(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return m.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_reserved = quantity_reserved - ?,
		    quantity_available = quantity_available + ?,
		    last_updated = NOW(6)
		WHERE product_id = ? AND quantity_reserved >= ?`,
		[]any{qty, qty, productID, qty},
		func(tx *sql.Tx) error {
			return &domain.InsufficientReservedStockError{
				Reserved:  m.reservedTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

func (m *MySQLStore) Fulfill(ctx context.Context, productID string, qty int) (domain.Ledger, error) {
	return m.mutate(ctx, productID, nil, `
		UPDATE stock_ledger
		SET quantity_reserved = quantity_reserved - ?, last_updated = NOW(6)
		WHERE product_id = ? AND quantity_reserved >= ?`,
		[]any{qty, productID, qty},
		func(tx *sql.Tx) error {
			return &domain.InsufficientReservedStockError{
				Reserved:  m.reservedTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

func (m *MySQLStore) Finalize(ctx context.Context, productID string, qty int, mv domain.Movement) (domain.Ledger, error) {
	return m.mutate(ctx, productID, &mv, `
		UPDATE stock_ledger
		SET quantity_reserved = quantity_reserved - ?, last_updated = NOW(6)
		WHERE product_id = ? AND quantity_reserved >= ?`,
		[]any{qty, productID, qty},
		func(tx *sql.Tx) error {
			return &domain.InsufficientReservedStockError{
				Reserved:  m.reservedTx(ctx, tx, productID),
				Requested: qty,
			}
		},
	)
}

// mutate runs the guarded UPDATE, the optional movement insert and the
// snapshot read in one transaction. onMiss builds the error returned when
// the UPDATE matched no row; nothing has changed at that point.
func (m *MySQLStore) mutate(ctx context.Context, productID string, mv *domain.Movement, query string, args []any, onMiss func(*sql.Tx) error) (domain.Ledger, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("update ledger: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.Ledger{}, onMiss(tx)
	}

	if mv != nil {
		if err := insertMovementTx(ctx, tx, *mv); err != nil {
			return domain.Ledger{}, err
		}
	}

	led, err := ledgerTx(ctx, tx, productID)
	if err != nil {
		return domain.Ledger{}, err
	}
	return led, tx.Commit()
}

func (m *MySQLStore) ListLowStock(ctx context.Context, threshold int) ([]domain.Ledger, error) {
	query := `
		SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
		FROM stock_ledger WHERE quantity_available <= reorder_level
		ORDER BY quantity_available ASC`
	args := []any{}
	if threshold > 0 {
		query = `
		SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
		FROM stock_ledger WHERE quantity_available <= ?
		ORDER BY quantity_available ASC`
		args = append(args, threshold)
	}
	return m.listLedgers(ctx, query, args...)
}

func (m *MySQLStore) ListOutOfStock(ctx context.Context) ([]domain.Ledger, error) {
	return m.listLedgers(ctx, `
		SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
		FROM stock_ledger WHERE quantity_available = 0
		ORDER BY last_updated DESC`)
}

func (m *MySQLStore) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]domain.Movement, error) {
	return m.listMovements(ctx, `
		SELECT id, product_id, type, quantity, reference, performed_by, notes, created_at
		FROM stock_movements WHERE product_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		productID, normalizeLimit(limit), offset)
}

func (m *MySQLStore) ListByType(ctx context.Context, typ domain.MovementType, limit, offset int) ([]domain.Movement, error) {
	return m.listMovements(ctx, `
		SELECT id, product_id, type, quantity, reference, performed_by, notes, created_at
		FROM stock_movements WHERE type = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		string(typ), normalizeLimit(limit), offset)
}

func (m *MySQLStore) ListRecent(ctx context.Context, limit, offset int) ([]domain.Movement, error) {
	return m.listMovements(ctx, `
		SELECT id, product_id, type, quantity, reference, performed_by, notes, created_at
		FROM stock_movements
		ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		normalizeLimit(limit), offset)
}

func (m *MySQLStore) ProductSKU(ctx context.Context, productID string) (string, error) {
	var sku string
	err := m.db.QueryRowContext(ctx,
		`SELECT sku FROM products WHERE id = ?`, productID,
	).Scan(&sku)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query product: %w", err)
	}
	return sku, nil
}

func (m *MySQLStore) SetOrderable(ctx context.Context, productID string, orderable bool) error {
	// The condition keeps the write a no-op when the flag already matches.
	_, err := m.db.ExecContext(ctx, `
		UPDATE products SET is_orderable = ? WHERE id = ? AND is_orderable <> ?`,
		orderable, productID, orderable,
	)
	if err != nil {
		return fmt.Errorf("update orderable flag: %w", err)
	}
	return nil
}

func (m *MySQLStore) listLedgers(ctx context.Context, query string, args ...any) ([]domain.Ledger, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
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

func (m *MySQLStore) listMovements(ctx context.Context, query string, args ...any) ([]domain.Movement, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var out []domain.Movement
	for rows.Next() {
		var mv domain.Movement
		var typ string
		var performedBy sql.NullString
		if err := rows.Scan(&mv.ID, &mv.ProductID, &typ, &mv.Quantity,
			&mv.Reference, &performedBy, &mv.Notes, &mv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		mv.Type = domain.MovementType(typ)
		mv.PerformedBy = actorFromColumn(performedBy)
		out = append(out, mv)
	}
	return out, rows.Err()
}

// availableTx reads the current available count for error detail after a
// failed conditional update. A missing row counts as zero.
func (m *MySQLStore) availableTx(ctx context.Context, tx *sql.Tx, productID string) int {
	var available int
	_ = tx.QueryRowContext(ctx,
		`SELECT quantity_available FROM stock_ledger WHERE product_id = ?`, productID,
	).Scan(&available)
	return available
}

func (m *MySQLStore) reservedTx(ctx context.Context, tx *sql.Tx, productID string) int {
	var reserved int
	_ = tx.QueryRowContext(ctx,
		`SELECT quantity_reserved FROM stock_ledger WHERE product_id = ?`, productID,
	).Scan(&reserved)
	return reserved
}

func insertMovementTx(ctx context.Context, tx *sql.Tx, mv domain.Movement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, type, quantity, reference, performed_by, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.ID, mv.ProductID, string(mv.Type), mv.Quantity, mv.Reference,
		actorColumn(mv.PerformedBy), mv.Notes, mv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func ledgerTx(ctx context.Context, tx *sql.Tx, productID string) (domain.Ledger, error) {
	return scanLedger(tx.QueryRowContext(ctx, `
		SELECT product_id, sku, quantity_available, quantity_reserved, reorder_level, last_updated
		FROM stock_ledger WHERE product_id = ?`, productID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(row rowScanner) (domain.Ledger, error) {
	var led domain.Ledger
	err := row.Scan(&led.ProductID, &led.SKU, &led.QuantityAvailable,
		&led.QuantityReserved, &led.ReorderLevel, &led.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Ledger{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("scan ledger: %w", err)
	}
	return led, nil
}

// actorColumn maps an actor onto the nullable performed_by column: user ids
// verbatim, "system" for the system actor, NULL for unknown.
func actorColumn(a domain.Actor) any {
	switch a.Kind {
	case domain.ActorKindUser:
		return a.UserID
	case domain.ActorKindSystem:
		return "system"
	default:
		return nil
	}
}

func actorFromColumn(v sql.NullString) domain.Actor {
	switch {
	case !v.Valid:
		return domain.UnknownActor()
	case v.String == "system":
		return domain.SystemActor()
	default:
		return domain.UserActor(v.String)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
