package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valmera/orderdesk/internal/domain/catalog"
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const catalogColumns = `id, name, description, unit_price, kind, active, version, created_at, updated_at`

func scanCatalogItem(row pgx.Row) (catalog.Item, error) {
	var item catalog.Item
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.UnitPrice,
		(*string)(&item.Kind),
		&item.Active,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

// List returns all catalog items ordered by name.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+catalogColumns+` FROM catalog_items ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing catalog items: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning catalog item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing catalog items: %w", err)
	}

	return items, nil
}

// FindByID returns a single catalog item by its identifier. It returns
// catalog.ErrNotFound when no matching item exists.
func (r *CatalogRepository) FindByID(ctx context.Context, id string) (*catalog.Item, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1`, id)

	item, err := scanCatalogItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting catalog item %q: %w", id, err)
	}

	return &item, nil
}

// Create persists a new catalog item.
func (r *CatalogRepository) Create(ctx context.Context, item *catalog.Item) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO catalog_items (id, name, description, unit_price, kind, active, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.Name, item.Description, item.UnitPrice, string(item.Kind),
		item.Active, item.Version, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating catalog item %q: %w", item.ID, err)
	}

	return nil
}

// Update writes the item's mutable fields and increments its version.
func (r *CatalogRepository) Update(ctx context.Context, item *catalog.Item) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE catalog_items
		 SET name = $2, description = $3, unit_price = $4, kind = $5, active = $6,
		     updated_at = $7, version = version + 1
		 WHERE id = $1`,
		item.ID, item.Name, item.Description, item.UnitPrice, string(item.Kind),
		item.Active, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating catalog item %q: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}

	item.Version++
	return nil
}

// Delete removes a catalog item. The reference guard runs in the service
// layer before this is called.
func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM catalog_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting catalog item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}

	return nil
}
