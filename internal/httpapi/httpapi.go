// Package httpapi exposes the terminal's local HTTP surface: catalog and
// customer management, the cart, checkout, and sync status. It binds on
// loopback for the register UI; there is no authentication layer here.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kasirkita/pos/internal/checkout"
	"kasirkita/pos/internal/connectivity"
	"kasirkita/pos/internal/domain"
	"kasirkita/pos/internal/entity"
	"kasirkita/pos/internal/queue"
	"kasirkita/pos/internal/reconcile"
)

type API struct {
	entities *entity.Store
	builder  *checkout.Builder
	rec      *reconcile.Reconciler
	queue    *queue.Queue
	monitor  connectivity.Monitor
}

func New(entities *entity.Store, builder *checkout.Builder, rec *reconcile.Reconciler, q *queue.Queue, monitor connectivity.Monitor) *API {
	return &API{
		entities: entities,
		builder:  builder,
		rec:      rec,
		queue:    q,
		monitor:  monitor,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/products", a.handleProducts)
	mux.HandleFunc("/api/v1/products/", a.handleProductActions)
	mux.HandleFunc("/api/v1/customers", a.handleCustomers)
	mux.HandleFunc("/api/v1/customers/", a.handleCustomerActions)
	mux.HandleFunc("/api/v1/sales", a.handleSales)

	mux.HandleFunc("/api/v1/cart", a.handleCart)
	mux.HandleFunc("/api/v1/cart/items/", a.handleCartItemActions)
	mux.HandleFunc("/api/v1/cart/scan", a.handleScan)
	mux.HandleFunc("/api/v1/cart/discount", a.handleDiscount)
	mux.HandleFunc("/api/v1/cart/customer", a.handleCartCustomer)
	mux.HandleFunc("/api/v1/checkout", a.handleCheckout)

	mux.HandleFunc("/api/v1/sync/status", a.handleSyncStatus)
	mux.HandleFunc("/api/v1/sync/retry", a.handleSyncRetry)

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if barcode := strings.TrimSpace(r.URL.Query().Get("barcode")); barcode != "" {
			product, err := a.entities.ProductByBarcode(barcode)
			if err != nil {
				writeError(w, statusFromErr(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"product": product})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": a.entities.Products()})
	case http.MethodPost:
		var req domain.Product
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.entities.CreateProduct(req)
		if err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r.URL.Path, "/api/v1/products/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.entities.ProductByID(id)
		if err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPatch:
		var req domain.ProductUpdate
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.entities.UpdateProduct(id, req)
		if err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodDelete:
		if err := a.entities.DeleteProduct(id); err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"customers": a.entities.Customers()})
	case http.MethodPost:
		var req domain.Customer
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.entities.CreateCustomer(req)
		if err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r.URL.Path, "/api/v1/customers/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.CustomerUpdate
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.entities.UpdateCustomer(id, req)
		if err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodDelete:
		if err := a.entities.DeleteCustomer(id); err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": a.entities.Sales()})
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.writeCart(w)
	case http.MethodPost:
		var req struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if err := a.builder.AddItem(req.ProductID, req.Quantity); err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		a.writeCart(w)
	case http.MethodDelete:
		a.builder.Clear()
		a.writeCart(w)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartItemActions(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r.URL.Path, "/api/v1/cart/items/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req struct {
			Quantity int `json:"quantity"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.builder.SetQuantity(id, req.Quantity); err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		a.writeCart(w)
	case http.MethodDelete:
		if err := a.builder.RemoveItem(id); err != nil {
			writeError(w, statusFromErr(err), err)
			return
		}
		a.writeCart(w)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.builder.AddByBarcode(strings.TrimSpace(req.Barcode)); err != nil {
		writeError(w, statusFromErr(err), err)
		return
	}
	a.writeCart(w)
}

func (a *API) handleDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		DiscountCents int64 `json:"discount_cents"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.builder.SetDiscount(req.DiscountCents); err != nil {
		writeError(w, statusFromErr(err), err)
		return
	}
	a.writeCart(w)
}

func (a *API) handleCartCustomer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		CustomerID int64 `json:"customer_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.builder.AttachCustomer(req.CustomerID); err != nil {
		writeError(w, statusFromErr(err), err)
		return
	}
	a.writeCart(w)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		PaymentMethod domain.PaymentMethod `json:"payment_method"`
		PaymentCents  int64                `json:"payment_cents"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sale, err := a.builder.Complete(req.PaymentMethod, req.PaymentCents)
	if err != nil {
		writeError(w, statusFromErr(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	errs := a.rec.Errors()
	dropped := make([]map[string]any, 0, len(errs))
	for _, e := range errs {
		dropped = append(dropped, map[string]any{
			"mutation": e.Mutation.ID,
			"kind":     e.Mutation.Kind,
			"entity":   e.Mutation.Entity,
			"error":    e.Err.Error(),
			"at":       e.At.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"online":  a.monitor.Online(),
		"state":   a.rec.State().String(),
		"pending": a.queue.Len(),
		"dropped": dropped,
	})
}

func (a *API) handleSyncRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	a.rec.Retry()
	writeJSON(w, http.StatusAccepted, map[string]any{"state": a.rec.State().String()})
}

func (a *API) writeCart(w http.ResponseWriter) {
	totals := a.builder.Totals()
	writeJSON(w, http.StatusOK, map[string]any{
		"items":          a.builder.Lines(),
		"subtotal_cents": totals.SubtotalCents,
		"tax_cents":      totals.TaxCents,
		"discount_cents": totals.DiscountCents,
		"total_cents":    totals.TotalCents,
	})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func statusFromErr(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInsufficientPayment),
		errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func idFromPath(path string, prefix string) (int64, error) {
	raw := strings.TrimPrefix(path, prefix)
	raw = strings.TrimSuffix(raw, "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid id in path")
	}
	return id, nil
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
