package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvalidUnitPriceError indicates a non-positive unit price.
type InvalidUnitPriceError struct {
	UnitPrice decimal.Decimal
}

func (e *InvalidUnitPriceError) Error() string {
	return fmt.Sprintf("unit price must be greater than 0, got %s", e.UnitPrice)
}

// InvalidKindError indicates an unknown catalog item kind.
type InvalidKindError struct {
	Kind Kind
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("unknown catalog item kind %q", e.Kind)
}

// ReferenceChecker reports whether any order line item references a catalog
// item. Satisfied by the order item storage.
type ReferenceChecker interface {
	ExistsByCatalogItem(ctx context.Context, catalogItemID string) (bool, error)
}

// Service encapsulates catalog item management, including the deletion guard.
type Service struct {
	items Repository
	refs  ReferenceChecker
	now   func() time.Time
}

// NewService creates a catalog Service.
func NewService(items Repository, refs ReferenceChecker) *Service {
	return &Service{items: items, refs: refs, now: time.Now}
}

// CreateItemRequest holds the input for registering a catalog item.
type CreateItemRequest struct {
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Kind        Kind
	Active      bool
}

// Create registers a new catalog item.
func (s *Service) Create(ctx context.Context, req CreateItemRequest) (*Item, error) {
	if !req.UnitPrice.IsPositive() {
		return nil, &InvalidUnitPriceError{UnitPrice: req.UnitPrice}
	}
	if !req.Kind.Valid() {
		return nil, &InvalidKindError{Kind: req.Kind}
	}

	now := s.now()
	item := &Item{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		Kind:        req.Kind,
		Active:      req.Active,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, errors.Wrap(err, "create catalog item")
	}

	return item, nil
}

// Get returns a catalog item by ID.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.items.FindByID(ctx, id)
}

// List returns all catalog items.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	return s.items.List(ctx)
}

// UpdateItemRequest holds the input for updating a catalog item. Nil fields
// are left unchanged.
type UpdateItemRequest struct {
	Name        *string
	Description *string
	UnitPrice   *decimal.Decimal
	Kind        *Kind
	Active      *bool
}

// Update applies the requested changes to an existing catalog item. This is
// the only path that toggles the active flag.
func (s *Service) Update(ctx context.Context, id string, req UpdateItemRequest) (*Item, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.UnitPrice != nil {
		if !req.UnitPrice.IsPositive() {
			return nil, &InvalidUnitPriceError{UnitPrice: *req.UnitPrice}
		}
		item.UnitPrice = *req.UnitPrice
	}
	if req.Kind != nil {
		if !req.Kind.Valid() {
			return nil, &InvalidKindError{Kind: *req.Kind}
		}
		item.Kind = *req.Kind
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	item.UpdatedAt = s.now()

	if err := s.items.Update(ctx, item); err != nil {
		return nil, errors.Wrap(err, "update catalog item")
	}

	return item, nil
}

// Delete removes a catalog item. Deletion is refused with ErrReferenced while
// any order line item still references the item.
func (s *Service) Delete(ctx context.Context, id string) error {
	referenced, err := s.refs.ExistsByCatalogItem(ctx, id)
	if err != nil {
		return errors.Wrap(err, "check order item references")
	}
	if referenced {
		return ErrReferenced
	}

	if err := s.items.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete catalog item")
	}

	return nil
}
