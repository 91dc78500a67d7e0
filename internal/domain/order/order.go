package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. Only StatusOpen is behaviorally
// distinguished by the pricing engine: it gates net-total accumulation.
// Transitions between statuses are plain field updates; no transition graph
// is enforced.
type Status string

const (
	StatusOpen           Status = "open"
	StatusClosed         Status = "closed"
	StatusWaitingPayment Status = "waiting_payment"
	StatusCanceled       Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusWaitingPayment, StatusCanceled:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrVersionConflict is returned by storage when an order row changed
	// between read and write. The whole attachment is rejected; the caller
	// may retry.
	ErrVersionConflict = errors.New("order version conflict")
)

// Order is the aggregate owning an order's identity, status, discount and
// running totals. It does not hold its line items; those are loaded
// separately by ID and reference the order by foreign key.
type Order struct {
	ID              string
	Number          string
	PlacedAt        time.Time
	Status          Status
	DiscountPercent decimal.NullDecimal
	GrossTotal      decimal.NullDecimal
	NetTotal        decimal.NullDecimal
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AddGross adds amount to the running gross total. An absent total counts
// as zero. Totals are only ever increased by attachments; there is no
// decrease path.
func (o *Order) AddGross(amount decimal.Decimal) {
	o.GrossTotal = addNullable(o.GrossTotal, amount)
}

// AddNet adds amount to the running net total. An absent total counts as zero.
func (o *Order) AddNet(amount decimal.Decimal) {
	o.NetTotal = addNullable(o.NetTotal, amount)
}

func addNullable(cur decimal.NullDecimal, amount decimal.Decimal) decimal.NullDecimal {
	if !cur.Valid {
		return decimal.NullDecimal{Decimal: amount, Valid: true}
	}
	return decimal.NullDecimal{Decimal: cur.Decimal.Add(amount), Valid: true}
}

// Item is a single line of an order. It references its catalog item by ID
// only, never by embedded copy.
type Item struct {
	ID            string
	OrderID       string
	CatalogItemID string
	Quantity      int
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	List(ctx context.Context) ([]Order, error)
	FindByID(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	// Update writes the order row guarded by its version counter; it returns
	// ErrVersionConflict when the row changed since it was read.
	Update(ctx context.Context, o *Order) error
}

// ItemRepository defines persistence operations for order line items.
type ItemRepository interface {
	// Save persists a new line item together with its updated order as one
	// transaction. The order write is compared-and-incremented on version;
	// ErrVersionConflict is returned when the order changed concurrently and
	// nothing is committed.
	Save(ctx context.Context, item *Item, o *Order) error
	FindByID(ctx context.Context, id string) (*Item, error)
	ListByOrder(ctx context.Context, orderID string) ([]Item, error)
	ExistsByCatalogItem(ctx context.Context, catalogItemID string) (bool, error)
}
