package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valmera/orderdesk/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, number, placed_at, status, discount_percent, gross_total, net_total, version, created_at, updated_at`

func scanOrder(row pgx.Row) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID,
		&o.Number,
		&o.PlacedAt,
		(*string)(&o.Status),
		&o.DiscountPercent,
		&o.GrossTotal,
		&o.NetTotal,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY placed_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	return out, nil
}

// FindByID returns a single order by its identifier. It returns
// order.ErrNotFound when no matching order exists.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	return &o, nil
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (id, number, placed_at, status, discount_percent, gross_total, net_total, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.Number, o.PlacedAt, string(o.Status), o.DiscountPercent,
		o.GrossTotal, o.NetTotal, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// Update writes the order row guarded by its version counter. The write
// commits only when the stored version still matches the one read; otherwise
// order.ErrVersionConflict is returned and nothing changes.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, string(o.Status), o.DiscountPercent, o.GrossTotal, o.NetTotal,
		o.UpdatedAt, o.Version,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrVersionConflict
	}

	o.Version++
	return nil
}

const updateOrderSQL = `
UPDATE orders
SET status = $2, discount_percent = $3, gross_total = $4, net_total = $5,
    updated_at = $6, version = version + 1
WHERE id = $1 AND version = $7`

var _ order.ItemRepository = (*OrderItemRepository)(nil)

// OrderItemRepository implements order.ItemRepository backed by PostgreSQL.
// It also satisfies catalog.ReferenceChecker for the deletion guard.
type OrderItemRepository struct {
	pool *pgxpool.Pool
}

// NewOrderItemRepository returns an OrderItemRepository that uses the given pool.
func NewOrderItemRepository(pool *pgxpool.Pool) *OrderItemRepository {
	return &OrderItemRepository{pool: pool}
}

const orderItemColumns = `id, order_id, catalog_item_id, quantity, version, created_at, updated_at`

func scanOrderItem(row pgx.Row) (order.Item, error) {
	var item order.Item
	err := row.Scan(
		&item.ID,
		&item.OrderID,
		&item.CatalogItemID,
		&item.Quantity,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

// Save persists a new line item together with its updated order in a single
// transaction. The order write is guarded by the version counter read at
// pricing time; a concurrent change makes the whole transaction roll back
// with order.ErrVersionConflict.
func (r *OrderItemRepository) Save(ctx context.Context, item *order.Item, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, updateOrderSQL,
		o.ID, string(o.Status), o.DiscountPercent, o.GrossTotal, o.NetTotal,
		o.UpdatedAt, o.Version,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrVersionConflict
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_items (id, order_id, catalog_item_id, quantity, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.OrderID, item.CatalogItemID, item.Quantity,
		item.Version, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order item %q: %w", item.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order item %q: %w", item.ID, err)
	}

	o.Version++
	return nil
}

// FindByID returns a single line item by its identifier.
func (r *OrderItemRepository) FindByID(ctx context.Context, id string) (*order.Item, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE id = $1`, id)

	item, err := scanOrderItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order item %q: %w", id, err)
	}

	return &item, nil
}

// ListByOrder returns all line items of an order in attachment order.
func (r *OrderItemRepository) ListByOrder(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("listing order items for %q: %w", orderID, err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing order items for %q: %w", orderID, err)
	}

	return items, nil
}

// ExistsByCatalogItem reports whether any line item references the catalog
// item. Backs the catalog deletion guard.
func (r *OrderItemRepository) ExistsByCatalogItem(ctx context.Context, catalogItemID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM order_items WHERE catalog_item_id = $1)`,
		catalogItemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking order item references for %q: %w", catalogItemID, err)
	}

	return exists, nil
}
