package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/valmera/orderdesk/internal/domain/catalog"
)

// OrderNotFoundError indicates the target order does not exist.
type OrderNotFoundError struct {
	OrderID string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

// CatalogItemNotFoundError indicates the requested catalog item does not exist.
type CatalogItemNotFoundError struct {
	CatalogItemID string
}

func (e *CatalogItemNotFoundError) Error() string {
	return fmt.Sprintf("catalog item %s not found", e.CatalogItemID)
}

// ItemNotActiveError indicates an attempt to attach an inactive catalog item.
type ItemNotActiveError struct {
	CatalogItemID string
}

func (e *ItemNotActiveError) Error() string {
	return fmt.Sprintf("item %s not active", e.CatalogItemID)
}

// InvalidQuantityError indicates a non-positive quantity. Quantities are
// validated upstream, but the engine never assumes that check happened.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0, got %d", e.Quantity)
}

// SaveFailedError indicates the persistence transaction did not commit.
// Nothing is considered committed and no retry is attempted here; use
// errors.Is(err, ErrVersionConflict) to tell a concurrency conflict from
// other storage failures.
type SaveFailedError struct {
	Err error
}

func (e *SaveFailedError) Error() string {
	return fmt.Sprintf("order save failed: %v", e.Err)
}

func (e *SaveFailedError) Unwrap() error {
	return e.Err
}

// Service is the order pricing engine. Each item attachment recomputes the
// order's running totals: gross on every attachment, net only while the order
// is open, with the discount applied to product-kind items only.
type Service struct {
	catalog catalog.Repository
	orders  Repository
	items   ItemRepository
	now     func() time.Time

	tracer   trace.Tracer
	attached metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(catalogRepo catalog.Repository, orders Repository, items ItemRepository) *Service {
	meter := otel.Meter("orderdesk.order")
	attached, err := meter.Int64Counter("order_items_attached_total",
		metric.WithDescription("Number of line items successfully attached to orders."))
	if err != nil {
		// Metrics must never break pricing.
		attached = noop.Int64Counter{}
	}

	return &Service{
		catalog:  catalogRepo,
		orders:   orders,
		items:    items,
		now:      time.Now,
		tracer:   otel.Tracer("orderdesk.order"),
		attached: attached,
	}
}

// AttachItemRequest holds the input for attaching a catalog item to an order.
type AttachItemRequest struct {
	OrderID       string
	CatalogItemID string
	Quantity      int
}

// AttachItemResult holds the created line item and a snapshot of the catalog
// item it was priced from. The snapshot reflects the price and kind used at
// computation time; a concurrent catalog change is not observed.
type AttachItemResult struct {
	Item        *Item
	CatalogItem *catalog.Item
}

// AttachItem prices one line item and appends it to an order.
//
// The gross amount is added to the order's gross total on every attachment,
// regardless of status. The net amount is added only while the order is open.
// The item and the updated order are persisted as one transaction.
func (s *Service) AttachItem(ctx context.Context, req AttachItemRequest) (*AttachItemResult, error) {
	ctx, span := s.tracer.Start(ctx, "AttachItem",
		trace.WithAttributes(attribute.String("order.id", req.OrderID)))
	defer span.End()

	if req.Quantity <= 0 {
		return nil, &InvalidQuantityError{Quantity: req.Quantity}
	}

	ci, err := s.catalog.FindByID(ctx, req.CatalogItemID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &CatalogItemNotFoundError{CatalogItemID: req.CatalogItemID}
		}
		return nil, errors.Wrap(err, "find catalog item")
	}
	if !ci.Active {
		return nil, &ItemNotActiveError{CatalogItemID: ci.ID}
	}

	o, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &OrderNotFoundError{OrderID: req.OrderID}
		}
		return nil, errors.Wrap(err, "find order")
	}

	gross := GrossAmount(ci.UnitPrice, req.Quantity)
	o.AddGross(gross)

	// Net accumulates only while the order is open. Items attached in any
	// other status still update the gross total and are still created; they
	// never contribute to net, even if the order later reopens.
	if o.Status == StatusOpen {
		o.AddNet(NetAmount(gross, ci.Kind, o.DiscountPercent))
	}

	now := s.now()
	o.UpdatedAt = now
	item := &Item{
		ID:            uuid.New().String(),
		OrderID:       o.ID,
		CatalogItemID: ci.ID,
		Quantity:      req.Quantity,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.items.Save(ctx, item, o); err != nil {
		return nil, &SaveFailedError{Err: err}
	}

	s.attached.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(ci.Kind))))

	return &AttachItemResult{Item: item, CatalogItem: ci}, nil
}

// CreateOrderRequest holds the input for opening a new order.
type CreateOrderRequest struct {
	Number          string
	DiscountPercent decimal.NullDecimal
}

// InvalidDiscountError indicates a negative discount percent.
type InvalidDiscountError struct {
	DiscountPercent decimal.Decimal
}

func (e *InvalidDiscountError) Error() string {
	return fmt.Sprintf("discount percent must not be negative, got %s", e.DiscountPercent)
}

// Create opens a new, empty order. Totals stay absent until the first item
// is attached. When no number is given one is generated.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.DiscountPercent.Valid && req.DiscountPercent.Decimal.IsNegative() {
		return nil, &InvalidDiscountError{DiscountPercent: req.DiscountPercent.Decimal}
	}

	id := uuid.New().String()
	number := req.Number
	if number == "" {
		number = "ORD-" + strings.ToUpper(id[:8])
	}

	now := s.now()
	o := &Order{
		ID:              id,
		Number:          number,
		PlacedAt:        now,
		Status:          StatusOpen,
		DiscountPercent: req.DiscountPercent,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// Details pairs an order with its line items.
type Details struct {
	Order Order
	Items []Item
}

// Get returns an order together with its line items.
func (s *Service) Get(ctx context.Context, id string) (*Details, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &OrderNotFoundError{OrderID: id}
		}
		return nil, errors.Wrap(err, "find order")
	}

	items, err := s.items.ListByOrder(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}

	return &Details{Order: *o, Items: items}, nil
}

// List returns all orders, without their items.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// UpdateOrderRequest holds the input for updating an order's status or
// discount. Nil fields are left unchanged.
type UpdateOrderRequest struct {
	Status          *Status
	DiscountPercent *decimal.NullDecimal
}

// InvalidStatusError indicates an unknown order status.
type InvalidStatusError struct {
	Status Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("unknown order status %q", e.Status)
}

// Update applies a plain field update to an order. Status changes are not
// validated against a transition graph, and totals are never revisited when
// an order leaves or re-enters the open state.
func (s *Service) Update(ctx context.Context, id string, req UpdateOrderRequest) (*Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &OrderNotFoundError{OrderID: id}
		}
		return nil, errors.Wrap(err, "find order")
	}

	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, &InvalidStatusError{Status: *req.Status}
		}
		o.Status = *req.Status
	}
	if req.DiscountPercent != nil {
		if req.DiscountPercent.Valid && req.DiscountPercent.Decimal.IsNegative() {
			return nil, &InvalidDiscountError{DiscountPercent: req.DiscountPercent.Decimal}
		}
		o.DiscountPercent = *req.DiscountPercent
	}
	o.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, &SaveFailedError{Err: err}
	}

	return o, nil
}
