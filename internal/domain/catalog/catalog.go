package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind classifies a catalog item for pricing purposes.
type Kind string

const (
	// KindProduct marks an item eligible for order-level discounts.
	KindProduct Kind = "product"
	// KindService marks an item that is never discounted.
	KindService Kind = "service"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindProduct || k == KindService
}

// ErrNotFound is returned when a requested catalog item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// ErrReferenced is returned when a catalog item cannot be deleted because an
// order line item still references it.
var ErrReferenced = errors.New("item associated with an order item")

// Item represents a catalog entry available for ordering.
type Item struct {
	ID          string
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Kind        Kind
	Active      bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines persistence operations for catalog items.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	FindByID(ctx context.Context, id string) (*Item, error)
	Create(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id string) error
}
