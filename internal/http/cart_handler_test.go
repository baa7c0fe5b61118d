package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/domain"
	catalogrepo "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/catalog/repository"
)

func TestGetCart_MintsCartID(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/api/v1/cart/", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, rec.Code)
	}
	id := rec.Header().Get(CartIDHeader)
	if id == "" {
		t.Fatal("Expected a cart id header on first visit")
	}
	if api.carts.lastID != id {
		t.Errorf("Expected service to load cart %q, got %q", id, api.carts.lastID)
	}

	var response CartResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Mode != domain.ModeEmpty {
		t.Errorf("Expected empty mode, got %s", response.Mode)
	}
}

func TestGetCart_KeepsCartID(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/api/v1/cart/", "", map[string]string{CartIDHeader: "sess-42"})

	if got := rec.Header().Get(CartIDHeader); got != "sess-42" {
		t.Errorf("Expected cart id sess-42, got %q", got)
	}
	if api.carts.lastID != "sess-42" {
		t.Errorf("Expected service call for sess-42, got %q", api.carts.lastID)
	}
}

func TestAddItem_Success(t *testing.T) {
	api := newTestAPI()
	cart := domain.NewCart("sess-1", "EUR")
	if err := cart.AddLine(domain.CartLine{ProductID: "P1", UnitPrice: 2000, Quantity: 2}); err != nil {
		t.Fatal(err)
	}
	api.carts.cart = cart

	rec := api.do(http.MethodPost, "/api/v1/cart/items", `{"product_id":"P1","quantity":2}`,
		map[string]string{CartIDHeader: "sess-1"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var response CartResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Total != 4000 {
		t.Errorf("Expected total 4000, got %d", response.Total)
	}
	if response.Mode != domain.ModePhysical {
		t.Errorf("Expected physical mode, got %s", response.Mode)
	}
}

func TestAddItem_BindsSignedInUser(t *testing.T) {
	api := newTestAPI()
	tok := api.token(t, Principal{UserID: "user-7", Email: "u7@example.com"})
	headers := bearer(tok)
	headers[CartIDHeader] = "sess-1"

	rec := api.do(http.MethodPost, "/api/v1/cart/items", `{"product_id":"P1","quantity":1}`, headers)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status code %d, got %d", http.StatusCreated, rec.Code)
	}
	if api.carts.assigned != "user-7" {
		t.Errorf("Expected cart bound to user-7, got %q", api.carts.assigned)
	}
}

func TestAddItem_Validation(t *testing.T) {
	api := newTestAPI()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"product_id":`},
		{"missing product", `{"quantity":1}`},
		{"zero quantity", `{"product_id":"P1","quantity":0}`},
		{"too many", `{"product_id":"P1","quantity":100}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/v1/cart/items", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestCart_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"mode conflict", domain.ErrModeConflict, http.StatusConflict, "mode_conflict"},
		{"unknown product", catalogrepo.ErrProductNotFound, http.StatusNotFound, "not_found"},
		{"internal", errors.New("mongo down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI()
			api.carts.err = tt.err

			rec := api.do(http.MethodPost, "/api/v1/cart/subscription", `{"plan_id":"duo"}`, nil)

			if rec.Code != tt.status {
				t.Fatalf("Expected status code %d, got %d", tt.status, rec.Code)
			}
			var response ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Code != tt.code {
				t.Errorf("Expected error code %q, got %q", tt.code, response.Code)
			}
		})
	}
}

func TestClearCart(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodDelete, "/api/v1/cart/", "", map[string]string{CartIDHeader: "sess-9"})

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status code %d, got %d", http.StatusNoContent, rec.Code)
	}
	if api.carts.lastID != "sess-9" {
		t.Errorf("Expected sess-9 cleared, got %q", api.carts.lastID)
	}
}
