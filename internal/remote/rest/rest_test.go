package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"kasirkita/pos/internal/domain"
)

func TestCreateProductReturnsServerID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/products" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var p domain.Product
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.ID != 0 {
			t.Fatalf("expected id stripped from payload, got %d", p.ID)
		}
		p.ID = 7001
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(p)
	}))
	defer server.Close()

	client := New(server.URL)
	id, err := client.CreateProduct(context.Background(), domain.Product{ID: 123, Name: "Tea", Barcode: "899", PriceCents: 500})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 7001 {
		t.Fatalf("expected 7001, got %d", id)
	}
}

func TestServerErrorsAreTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.CreateProduct(context.Background(), domain.Product{Name: "Tea", Barcode: "899", PriceCents: 500})
	if !errors.Is(err, domain.ErrTransientRemote) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClientErrorsArePermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown category", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.CreateProduct(context.Background(), domain.Product{Name: "Tea", Barcode: "899", PriceCents: 500})
	if !errors.Is(err, domain.ErrPermanentRemote) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestUnreachableServerIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(server.URL)
	err := client.UpdateProduct(context.Background(), 7001, domain.Product{Name: "Tea", Barcode: "899", PriceCents: 500})
	if !errors.Is(err, domain.ErrTransientRemote) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCreateSaleConflictCountsAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sale already exists", http.StatusConflict)
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.CreateSale(context.Background(), domain.Sale{ID: "sale-1", Items: []domain.SaleLine{{ProductID: 1, Quantity: 1}}})
	if err != nil {
		t.Fatalf("expected conflict treated as success, got %v", err)
	}
}

func TestTooManyRequestsIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.DeleteCustomer(context.Background(), 9001)
	if !errors.Is(err, domain.ErrTransientRemote) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestListProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]domain.Product{
			{ID: 1, Name: "Tea", Barcode: "899", PriceCents: 500, Stock: 10},
			{ID: 2, Name: "Coffee", Barcode: "900", PriceCents: 900, Stock: 5},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	products, err := client.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 2 || products[1].Name != "Coffee" {
		t.Fatalf("expected 2 products, got %+v", products)
	}
}

func TestPing(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	if err := New(healthy.URL).Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy ping: %v", err)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	if err := New(broken.URL).Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure")
	}
}
