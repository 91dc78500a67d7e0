// Package handler exposes the domain services over HTTP with JSON bodies.
// Monetary values travel as decimal strings to keep them exact on the wire.
package handler

import (
	"net/http"

	"github.com/valmera/orderdesk/internal/domain/catalog"
	"github.com/valmera/orderdesk/internal/domain/order"
)

// Handler serves the REST API, delegating business logic to the catalog and
// order services.
type Handler struct {
	catalog *catalog.Service
	orders  *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(catalogSvc *catalog.Service, orderSvc *order.Service) *Handler {
	return &Handler{
		catalog: catalogSvc,
		orders:  orderSvc,
	}
}

// Routes registers all API routes on mux. Mutating routes are wrapped with
// the auth middleware.
func (h *Handler) Routes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	protected := func(fn http.HandlerFunc) http.Handler {
		return auth(fn)
	}

	mux.HandleFunc("GET /api/catalog-items", h.listCatalogItems)
	mux.HandleFunc("GET /api/catalog-items/{id}", h.getCatalogItem)
	mux.Handle("POST /api/catalog-items", protected(h.createCatalogItem))
	mux.Handle("PATCH /api/catalog-items/{id}", protected(h.updateCatalogItem))
	mux.Handle("DELETE /api/catalog-items/{id}", protected(h.deleteCatalogItem))

	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.Handle("POST /api/orders", protected(h.createOrder))
	mux.Handle("PATCH /api/orders/{id}", protected(h.updateOrder))
	mux.Handle("POST /api/orders/{id}/items", protected(h.attachOrderItem))
}
