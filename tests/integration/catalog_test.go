//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListCatalogItems(t *testing.T) {
	resp := doGet(t, "/api/catalog-items")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	items := decodeJSON[[]catalogItemResponse](t, resp)
	if len(items) < 6 {
		t.Fatalf("expected at least 6 items, got %d", len(items))
	}
}

func TestGetCatalogItem(t *testing.T) {
	resp := doGet(t, "/api/catalog-items/"+seededItem)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	item := decodeJSON[catalogItemResponse](t, resp)
	if item.Name != "Deluxe Widget" {
		t.Errorf("name: got %q, want %q", item.Name, "Deluxe Widget")
	}
	if item.UnitPrice != "21.90" {
		t.Errorf("unitPrice: got %q, want %q", item.UnitPrice, "21.90")
	}
	if item.Kind != "product" {
		t.Errorf("kind: got %q, want %q", item.Kind, "product")
	}
}

func TestGetCatalogItem_NotFound(t *testing.T) {
	resp := doGet(t, "/api/catalog-items/00000000-0000-4000-8000-000000000000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateCatalogItem_NoAuth(t *testing.T) {
	resp := doPost(t, "/api/catalog-items", map[string]any{
		"name":      "Unauthorized Widget",
		"unitPrice": "1.00",
		"kind":      "product",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCatalogItemLifecycle(t *testing.T) {
	// Create.
	resp := doPostWithAuth(t, "/api/catalog-items", map[string]any{
		"name":        "Lifecycle Widget",
		"description": "created by integration test",
		"unitPrice":   "12.34",
		"kind":        "product",
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[catalogItemResponse](t, resp)
	resp.Body.Close()

	if created.ID == "" {
		t.Fatal("created item has empty ID")
	}
	if created.UnitPrice != "12.34" {
		t.Errorf("unitPrice: got %q, want %q", created.UnitPrice, "12.34")
	}

	// Update.
	resp = doPatchWithAuth(t, "/api/catalog-items/"+created.ID, map[string]any{
		"active":    false,
		"unitPrice": "15.00",
	}, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	updated := decodeJSON[catalogItemResponse](t, resp)
	resp.Body.Close()

	if updated.Active {
		t.Error("item should be inactive after update")
	}
	if updated.UnitPrice != "15.00" {
		t.Errorf("unitPrice: got %q, want %q", updated.UnitPrice, "15.00")
	}
	if updated.Version != created.Version+1 {
		t.Errorf("version: got %d, want %d", updated.Version, created.Version+1)
	}

	// Delete: nothing references the item, so the guard permits it.
	resp = doDeleteWithAuth(t, "/api/catalog-items/"+created.ID, testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	resp = doGet(t, "/api/catalog-items/"+created.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteCatalogItem_Referenced(t *testing.T) {
	// Create a dedicated item and attach it to an order so it is referenced.
	resp := doPostWithAuth(t, "/api/catalog-items", map[string]any{
		"name":      "Referenced Widget",
		"unitPrice": "3.00",
		"kind":      "product",
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d", resp.StatusCode)
	}
	item := decodeJSON[catalogItemResponse](t, resp)
	resp.Body.Close()

	resp = doPostWithAuth(t, "/api/orders", map[string]any{}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d", resp.StatusCode)
	}
	ord := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = doPostWithAuth(t, "/api/orders/"+ord.ID+"/items", map[string]any{
		"catalogItemId": item.ID,
		"quantity":      1,
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("attach: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doDeleteWithAuth(t, "/api/catalog-items/"+item.ID, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("delete referenced: expected 400, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "item associated with an order item" {
		t.Errorf("message: got %q, want %q", body.Message, "item associated with an order item")
	}

	check := doGet(t, "/api/catalog-items/"+item.ID)
	check.Body.Close()
	if check.StatusCode != http.StatusOK {
		t.Errorf("item should survive a rejected delete, got %d", check.StatusCode)
	}
}
