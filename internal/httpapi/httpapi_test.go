package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"kasirkita/pos/internal/checkout"
	"kasirkita/pos/internal/connectivity"
	"kasirkita/pos/internal/domain"
	"kasirkita/pos/internal/entity"
	"kasirkita/pos/internal/local"
	"kasirkita/pos/internal/queue"
	"kasirkita/pos/internal/reconcile"
)

// stubRemote accepts everything; handler tests only exercise the local
// path, reconciliation is covered in the reconcile package.
type stubRemote struct{ nextID int64 }

func (s *stubRemote) Ping(ctx context.Context) error { return nil }
func (s *stubRemote) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	s.nextID++
	return 7000 + s.nextID, nil
}
func (s *stubRemote) UpdateProduct(ctx context.Context, id int64, p domain.Product) error { return nil }
func (s *stubRemote) DeleteOrZeroStockProduct(ctx context.Context, id int64) error        { return nil }
func (s *stubRemote) CreateCustomer(ctx context.Context, c domain.Customer) (int64, error) {
	s.nextID++
	return 7000 + s.nextID, nil
}
func (s *stubRemote) UpdateCustomer(ctx context.Context, id int64, c domain.Customer) error {
	return nil
}
func (s *stubRemote) DeleteCustomer(ctx context.Context, id int64) error           { return nil }
func (s *stubRemote) CreateSale(ctx context.Context, sale domain.Sale) error       { return nil }
func (s *stubRemote) ListProducts(ctx context.Context) ([]domain.Product, error)   { return nil, nil }
func (s *stubRemote) ListCustomers(ctx context.Context) ([]domain.Customer, error) { return nil, nil }
func (s *stubRemote) ListSales(ctx context.Context) ([]domain.Sale, error)         { return nil, nil }

// newTestAPI wires the full local stack behind the handler: entity
// store, queue, reconciler and cart, with connectivity held offline so
// nothing drains mid-test.
func newTestAPI(t *testing.T) (*API, *entity.Store) {
	t.Helper()

	persist := local.NewMemory()
	entities := entity.New(persist)
	q := queue.New(persist)
	monitor := connectivity.NewManual(false)
	rec := reconcile.New(entities, q, &stubRemote{}, monitor)
	entities.SetOutbound(rec)
	builder := checkout.New(entities, 1, "Ani")

	return New(entities, builder, rec, q, monitor), entities
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateProductEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", map[string]any{
		"name":        "Tea",
		"barcode":     "899000001",
		"price_cents": 500,
		"stock":       10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Product.ID == 0 {
		t.Fatal("expected assigned id")
	}

	list := doJSON(t, handler, http.MethodGet, "/api/v1/products", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
}

func TestCreateProductEndpointValidation(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/products", map[string]any{
		"name": "Tea",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestDuplicateBarcodeMapsToConflict(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	payload := map[string]any{"name": "Tea", "barcode": "899000001", "price_cents": 500}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", payload); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	payload["name"] = "Other Tea"
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", payload); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestProductLookupByBarcode(t *testing.T) {
	api, entities := newTestAPI(t)
	if _, err := entities.CreateProduct(domain.Product{Name: "Tea", Barcode: "899000001", PriceCents: 500, Stock: 10}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/products?barcode=899000001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	missing := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/products?barcode=000", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
}

func TestCheckoutFlow(t *testing.T) {
	api, entities := newTestAPI(t)
	handler := api.Handler()

	p, err := entities.CreateProduct(domain.Product{Name: "Tea", Barcode: "899000001", PriceCents: 500, Stock: 10})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	add := doJSON(t, handler, http.MethodPost, "/api/v1/cart", map[string]any{
		"product_id": p.ID,
		"quantity":   2,
	})
	if add.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", add.Code, add.Body.String())
	}

	var cart struct {
		TotalCents int64 `json:"total_cents"`
	}
	if err := json.NewDecoder(add.Body).Decode(&cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if cart.TotalCents != 1100 {
		t.Fatalf("expected total 1100 with tax, got %d", cart.TotalCents)
	}

	short := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", map[string]any{
		"payment_method": "cash",
		"payment_cents":  1000,
	})
	if short.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for underpayment, got %d", short.Code)
	}

	done := doJSON(t, handler, http.MethodPost, "/api/v1/checkout", map[string]any{
		"payment_method": "cash",
		"payment_cents":  1500,
	})
	if done.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", done.Code, done.Body.String())
	}

	var result struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(done.Body).Decode(&result); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if result.Sale.ChangeCents != 400 {
		t.Fatalf("expected change 400, got %d", result.Sale.ChangeCents)
	}

	left, err := entities.ProductByID(p.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if left.Stock != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", left.Stock)
	}
}

func TestScanUnknownBarcode(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/cart/scan", map[string]any{
		"barcode": "000",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSyncStatusReportsQueueDepth(t *testing.T) {
	api, entities := newTestAPI(t)
	handler := api.Handler()

	for i := 0; i < 3; i++ {
		if _, err := entities.CreateProduct(domain.Product{
			Name:       fmt.Sprintf("Product %d", i),
			Barcode:    fmt.Sprintf("89900000%d", i),
			PriceCents: 500,
		}); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/sync/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Online  bool   `json:"online"`
		State   string `json:"state"`
		Pending int    `json:"pending"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Online {
		t.Fatal("expected offline")
	}
	if body.State != "idle" {
		t.Fatalf("expected idle, got %s", body.State)
	}
	if body.Pending != 3 {
		t.Fatalf("expected 3 pending, got %d", body.Pending)
	}
}

func TestSyncRetryAccepted(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/sync/retry", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodDelete, "/api/v1/sales", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
