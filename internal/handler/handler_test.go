package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valmera/orderdesk/internal/domain/auth"
	"github.com/valmera/orderdesk/internal/domain/catalog"
	"github.com/valmera/orderdesk/internal/domain/order"
)

// --- Mock implementations ---

type mockCatalogRepo struct {
	items  []catalog.Item
	byID   map[string]*catalog.Item
	delErr error
}

func (m *mockCatalogRepo) List(_ context.Context) ([]catalog.Item, error) {
	return m.items, nil
}

func (m *mockCatalogRepo) FindByID(_ context.Context, id string) (*catalog.Item, error) {
	item, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *mockCatalogRepo) Create(_ context.Context, item *catalog.Item) error {
	cp := *item
	m.items = append(m.items, cp)
	m.byID[item.ID] = &cp
	return nil
}

func (m *mockCatalogRepo) Update(_ context.Context, item *catalog.Item) error {
	if _, ok := m.byID[item.ID]; !ok {
		return catalog.ErrNotFound
	}
	item.Version++
	cp := *item
	m.byID[item.ID] = &cp
	return nil
}

func (m *mockCatalogRepo) Delete(_ context.Context, id string) error {
	if m.delErr != nil {
		return m.delErr
	}
	if _, ok := m.byID[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type mockOrderRepo struct {
	byID map[string]*order.Order
}

func (m *mockOrderRepo) List(_ context.Context) ([]order.Order, error) {
	out := make([]order.Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) FindByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *order.Order) error {
	cur, ok := m.byID[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	if cur.Version != o.Version {
		return order.ErrVersionConflict
	}
	o.Version++
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

type mockItemRepo struct {
	orders  *mockOrderRepo
	items   []order.Item
	saveErr error
}

func (m *mockItemRepo) Save(_ context.Context, item *order.Item, o *order.Order) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cur, ok := m.orders.byID[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	if cur.Version != o.Version {
		return order.ErrVersionConflict
	}
	o.Version++
	cp := *o
	m.orders.byID[o.ID] = &cp
	m.items = append(m.items, *item)
	return nil
}

func (m *mockItemRepo) FindByID(_ context.Context, id string) (*order.Item, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			return &m.items[i], nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockItemRepo) ListByOrder(_ context.Context, orderID string) ([]order.Item, error) {
	var out []order.Item
	for i := range m.items {
		if m.items[i].OrderID == orderID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *mockItemRepo) ExistsByCatalogItem(_ context.Context, catalogItemID string) (bool, error) {
	for i := range m.items {
		if m.items[i].CatalogItemID == catalogItemID {
			return true, nil
		}
	}
	return false, nil
}

type mockAPIKeyRepo struct {
	info *auth.APIKeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, _ string) (*auth.APIKeyInfo, error) {
	return m.info, m.err
}

// --- Helpers ---

type testEnv struct {
	mux     *http.ServeMux
	catalog *mockCatalogRepo
	orders  *mockOrderRepo
	items   *mockItemRepo
}

func newTestEnv() *testEnv {
	catalogRepo := &mockCatalogRepo{byID: make(map[string]*catalog.Item)}
	orderRepo := &mockOrderRepo{byID: make(map[string]*order.Order)}
	itemRepo := &mockItemRepo{orders: orderRepo}

	catalogSvc := catalog.NewService(catalogRepo, itemRepo)
	orderSvc := order.NewService(catalogRepo, orderRepo, itemRepo)

	mux := http.NewServeMux()
	h := NewHandler(catalogSvc, orderSvc)
	// Pass-through auth; Security has its own tests.
	h.Routes(mux, func(next http.Handler) http.Handler { return next })

	return &testEnv{
		mux:     mux,
		catalog: catalogRepo,
		orders:  orderRepo,
		items:   itemRepo,
	}
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	}
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

type catalogItemJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   string `json:"unitPrice"`
	Kind        string `json:"kind"`
	Active      bool   `json:"active"`
	Version     int64  `json:"version"`
}

type orderJSON struct {
	ID              string  `json:"id"`
	Number          string  `json:"number"`
	Status          string  `json:"status"`
	DiscountPercent *string `json:"discountPercent"`
	GrossTotal      *string `json:"grossTotal"`
	NetTotal        *string `json:"netTotal"`
	Version         int64   `json:"version"`
}

type orderDetailsJSON struct {
	Order orderJSON `json:"order"`
	Items []struct {
		ID            string `json:"id"`
		OrderID       string `json:"orderId"`
		CatalogItemID string `json:"catalogItemId"`
		Quantity      int    `json:"quantity"`
	} `json:"items"`
}

type attachResultJSON struct {
	Item struct {
		ID            string `json:"id"`
		OrderID       string `json:"orderId"`
		CatalogItemID string `json:"catalogItemId"`
		Quantity      int    `json:"quantity"`
	} `json:"item"`
	CatalogItem catalogItemJSON `json:"catalogItem"`
}

type errorJSON struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func seedCatalogItem(env *testEnv, id, name, price, kind string, active bool) {
	item := &catalog.Item{
		ID:        id,
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
		Kind:      catalog.Kind(kind),
		Active:    active,
		Version:   1,
	}
	env.catalog.items = append(env.catalog.items, *item)
	env.catalog.byID[id] = item
}

func seedOrder(env *testEnv, id, number string, status order.Status, discountPercent string) {
	o := &order.Order{
		ID:      id,
		Number:  number,
		Status:  status,
		Version: 1,
	}
	if discountPercent != "" {
		o.DiscountPercent = decimal.NullDecimal{
			Decimal: decimal.RequireFromString(discountPercent),
			Valid:   true,
		}
	}
	env.orders.byID[id] = o
}

// --- Catalog tests ---

func TestListCatalogItems(t *testing.T) {
	env := newTestEnv()
	seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)
	seedCatalogItem(env, "c2", "Audit", "150.00", "service", true)

	w := env.do(t, http.MethodGet, "/api/catalog-items", "")
	require.Equal(t, http.StatusOK, w.Code)

	items := decodeJSON[[]catalogItemJSON](t, w)
	require.Len(t, items, 2)
	assert.Equal(t, "Widget", items[0].Name)
	assert.Equal(t, "21.90", items[0].UnitPrice)
	assert.Equal(t, "service", items[1].Kind)
}

func TestGetCatalogItem(t *testing.T) {
	env := newTestEnv()
	seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)

	t.Run("found", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/catalog-items/c1", "")
		require.Equal(t, http.StatusOK, w.Code)

		item := decodeJSON[catalogItemJSON](t, w)
		assert.Equal(t, "c1", item.ID)
		assert.Equal(t, "21.90", item.UnitPrice)
	})

	t.Run("not found returns 404", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/catalog-items/missing", "")
		require.Equal(t, http.StatusNotFound, w.Code)

		resp := decodeJSON[errorJSON](t, w)
		assert.Equal(t, "catalog item not found", resp.Message)
	})
}

func TestCreateCatalogItem(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantMessage string
	}{
		{
			name:     "valid product",
			body:     `{"name": "Widget", "unitPrice": "21.90", "kind": "product"}`,
			wantCode: http.StatusCreated,
		},
		{
			name:     "price as JSON number",
			body:     `{"name": "Widget", "unitPrice": 21.9, "kind": "product"}`,
			wantCode: http.StatusCreated,
		},
		{
			name:        "missing name",
			body:        `{"unitPrice": "21.90", "kind": "product"}`,
			wantCode:    http.StatusBadRequest,
			wantMessage: "name is required",
		},
		{
			name:     "zero unit price",
			body:     `{"name": "Widget", "unitPrice": "0", "kind": "product"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown kind",
			body:     `{"name": "Widget", "unitPrice": "21.90", "kind": "bundle"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed body",
			body:     `{"name": `,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()

			w := env.do(t, http.MethodPost, "/api/catalog-items", tt.body)
			require.Equal(t, tt.wantCode, w.Code, "body: %s", w.Body.String())

			if tt.wantCode == http.StatusCreated {
				item := decodeJSON[catalogItemJSON](t, w)
				assert.NotEmpty(t, item.ID)
				assert.Equal(t, "21.90", item.UnitPrice)
				assert.True(t, item.Active)
				assert.Equal(t, int64(1), item.Version)
				return
			}
			if tt.wantMessage != "" {
				resp := decodeJSON[errorJSON](t, w)
				assert.Equal(t, tt.wantMessage, resp.Message)
			}
		})
	}
}

func TestUpdateCatalogItem(t *testing.T) {
	env := newTestEnv()
	seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)

	w := env.do(t, http.MethodPatch, "/api/catalog-items/c1", `{"active": false, "unitPrice": "25.00"}`)
	require.Equal(t, http.StatusOK, w.Code)

	item := decodeJSON[catalogItemJSON](t, w)
	assert.False(t, item.Active)
	assert.Equal(t, "25.00", item.UnitPrice)
	assert.Equal(t, "Widget", item.Name)
	assert.Equal(t, int64(2), item.Version)
}

func TestDeleteCatalogItem(t *testing.T) {
	t.Run("unreferenced item is removed", func(t *testing.T) {
		env := newTestEnv()
		seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)

		w := env.do(t, http.MethodDelete, "/api/catalog-items/c1", "")
		require.Equal(t, http.StatusNoContent, w.Code)

		w = env.do(t, http.MethodGet, "/api/catalog-items/c1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("referenced item is rejected", func(t *testing.T) {
		env := newTestEnv()
		seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "")
		env.items.items = append(env.items.items, order.Item{
			ID:            "i1",
			OrderID:       "o1",
			CatalogItemID: "c1",
			Quantity:      1,
		})

		w := env.do(t, http.MethodDelete, "/api/catalog-items/c1", "")
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeJSON[errorJSON](t, w)
		assert.Equal(t, "item associated with an order item", resp.Message)

		w = env.do(t, http.MethodGet, "/api/catalog-items/c1", "")
		assert.Equal(t, http.StatusOK, w.Code, "item must survive a rejected delete")
	})
}

// --- Order tests ---

func TestCreateOrder(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, http.MethodPost, "/api/orders", `{"discountPercent": "10"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	o := decodeJSON[orderJSON](t, w)
	assert.NotEmpty(t, o.ID)
	assert.NotEmpty(t, o.Number)
	assert.Equal(t, "open", o.Status)
	require.NotNil(t, o.DiscountPercent)
	assert.Equal(t, "10.00", *o.DiscountPercent)
	assert.Nil(t, o.GrossTotal, "totals stay unset until the first item")
	assert.Nil(t, o.NetTotal)
}

func TestCreateOrder_NegativeDiscount(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, http.MethodPost, "/api/orders", `{"discountPercent": "-5"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateOrder(t *testing.T) {
	t.Run("status change", func(t *testing.T) {
		env := newTestEnv()
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "")

		w := env.do(t, http.MethodPatch, "/api/orders/o1", `{"status": "closed"}`)
		require.Equal(t, http.StatusOK, w.Code)

		o := decodeJSON[orderJSON](t, w)
		assert.Equal(t, "closed", o.Status)
		assert.Equal(t, int64(2), o.Version)
	})

	t.Run("unknown status returns 400", func(t *testing.T) {
		env := newTestEnv()
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "")

		w := env.do(t, http.MethodPatch, "/api/orders/o1", `{"status": "shipped"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("null clears discount", func(t *testing.T) {
		env := newTestEnv()
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "10")

		w := env.do(t, http.MethodPatch, "/api/orders/o1", `{"discountPercent": null}`)
		require.Equal(t, http.StatusOK, w.Code)

		o := decodeJSON[orderJSON](t, w)
		assert.Nil(t, o.DiscountPercent)
	})

	t.Run("not found returns 404", func(t *testing.T) {
		env := newTestEnv()

		w := env.do(t, http.MethodPatch, "/api/orders/missing", `{"status": "closed"}`)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAttachOrderItem(t *testing.T) {
	t.Run("product on open order accumulates both totals", func(t *testing.T) {
		env := newTestEnv()
		seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "10")

		w := env.do(t, http.MethodPost, "/api/orders/o1/items", `{"catalogItemId": "c1", "quantity": 10}`)
		require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

		result := decodeJSON[attachResultJSON](t, w)
		assert.Equal(t, "o1", result.Item.OrderID)
		assert.Equal(t, "c1", result.Item.CatalogItemID)
		assert.Equal(t, 10, result.Item.Quantity)
		assert.Equal(t, "Widget", result.CatalogItem.Name)

		w = env.do(t, http.MethodGet, "/api/orders/o1", "")
		require.Equal(t, http.StatusOK, w.Code)

		details := decodeJSON[orderDetailsJSON](t, w)
		require.NotNil(t, details.Order.GrossTotal)
		require.NotNil(t, details.Order.NetTotal)
		assert.Equal(t, "219.00", *details.Order.GrossTotal)
		assert.Equal(t, "197.10", *details.Order.NetTotal)
		assert.Equal(t, int64(2), details.Order.Version)
		require.Len(t, details.Items, 1)
	})

	t.Run("closed order accumulates gross only", func(t *testing.T) {
		env := newTestEnv()
		seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)
		seedOrder(env, "o1", "ORD-1", order.StatusClosed, "10")

		w := env.do(t, http.MethodPost, "/api/orders/o1/items", `{"catalogItemId": "c1", "quantity": 10}`)
		require.Equal(t, http.StatusCreated, w.Code)

		w = env.do(t, http.MethodGet, "/api/orders/o1", "")
		details := decodeJSON[orderDetailsJSON](t, w)
		require.NotNil(t, details.Order.GrossTotal)
		assert.Equal(t, "219.00", *details.Order.GrossTotal)
		assert.Nil(t, details.Order.NetTotal)
	})

	t.Run("service item is never discounted", func(t *testing.T) {
		env := newTestEnv()
		seedCatalogItem(env, "s1", "Audit", "150.00", "service", true)
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "10")

		w := env.do(t, http.MethodPost, "/api/orders/o1/items", `{"catalogItemId": "s1", "quantity": 1}`)
		require.Equal(t, http.StatusCreated, w.Code)

		w = env.do(t, http.MethodGet, "/api/orders/o1", "")
		details := decodeJSON[orderDetailsJSON](t, w)
		require.NotNil(t, details.Order.NetTotal)
		assert.Equal(t, "150.00", *details.Order.GrossTotal)
		assert.Equal(t, "150.00", *details.Order.NetTotal)
	})

	t.Run("inactive item returns 400", func(t *testing.T) {
		env := newTestEnv()
		seedCatalogItem(env, "c1", "Legacy Widget", "9.99", "product", false)
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "")

		w := env.do(t, http.MethodPost, "/api/orders/o1/items", `{"catalogItemId": "c1", "quantity": 1}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("zero quantity returns 400", func(t *testing.T) {
		env := newTestEnv()
		seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "")

		w := env.do(t, http.MethodPost, "/api/orders/o1/items", `{"catalogItemId": "c1", "quantity": 0}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown catalog item returns 404", func(t *testing.T) {
		env := newTestEnv()
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "")

		w := env.do(t, http.MethodPost, "/api/orders/o1/items", `{"catalogItemId": "missing", "quantity": 1}`)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown order returns 404", func(t *testing.T) {
		env := newTestEnv()
		seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)

		w := env.do(t, http.MethodPost, "/api/orders/missing/items", `{"catalogItemId": "c1", "quantity": 1}`)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("version conflict returns 409", func(t *testing.T) {
		env := newTestEnv()
		seedCatalogItem(env, "c1", "Widget", "21.90", "product", true)
		seedOrder(env, "o1", "ORD-1", order.StatusOpen, "")
		env.items.saveErr = order.ErrVersionConflict

		w := env.do(t, http.MethodPost, "/api/orders/o1/items", `{"catalogItemId": "c1", "quantity": 1}`)
		require.Equal(t, http.StatusConflict, w.Code)

		resp := decodeJSON[errorJSON](t, w)
		assert.Equal(t, "order save failed", resp.Message)
	})
}

// --- Security tests ---

func TestSecurityRequire(t *testing.T) {
	pepper := []byte("test-pepper")
	apiKey := "my-secret-key"

	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(apiKey))
	storedHash := hex.EncodeToString(mac.Sum(nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid key passes", func(t *testing.T) {
		sec := NewSecurity(&mockAPIKeyRepo{
			info: &auth.APIKeyInfo{ID: "key-1", KeyHash: storedHash, Name: "test-key"},
		}, pepper)

		r := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		r.Header.Set("api_key", apiKey)
		w := httptest.NewRecorder()
		sec.Require(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing key returns 401", func(t *testing.T) {
		sec := NewSecurity(&mockAPIKeyRepo{}, pepper)

		r := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		w := httptest.NewRecorder()
		sec.Require(next).ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decodeJSON[errorJSON](t, w)
		assert.Equal(t, "missing api key", resp.Message)
	})

	t.Run("unknown key returns 401", func(t *testing.T) {
		sec := NewSecurity(&mockAPIKeyRepo{err: auth.ErrUnauthorized}, pepper)

		r := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		r.Header.Set("api_key", "bad-key")
		w := httptest.NewRecorder()
		sec.Require(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("stale stored hash returns 401", func(t *testing.T) {
		sec := NewSecurity(&mockAPIKeyRepo{
			info: &auth.APIKeyInfo{ID: "key-1", KeyHash: "deadbeef", Name: "stale"},
		}, pepper)

		r := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		r.Header.Set("api_key", apiKey)
		w := httptest.NewRecorder()
		sec.Require(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
