package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"kasirkita/pos/internal/domain"
)

func TestSaleReplayIdempotent(t *testing.T) {
	databaseURL := os.Getenv("POS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set POS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	barcode := fmt.Sprintf("it-%d", stamp)

	productID, err := s.CreateProduct(ctx, domain.Product{
		Name:       "Integration Tea",
		Barcode:    barcode,
		PriceCents: 500,
		Stock:      10,
		Category:   "drinks",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	sale := domain.Sale{
		ID:            saleID,
		CashierID:     1,
		CashierName:   "Ani",
		Items:         []domain.SaleLine{{ProductID: productID, ProductName: "Integration Tea", UnitPriceCents: 500, Quantity: 2, SubtotalCents: 1000}},
		SubtotalCents: 1000,
		TaxCents:      100,
		TotalCents:    1100,
		PaymentMethod: domain.PaymentCash,
		PaymentCents:  1500,
		ChangeCents:   400,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.CreateSale(ctx, sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	// A second replay of the same sale must not error or duplicate.
	if err := s.CreateSale(ctx, sale); err != nil {
		t.Fatalf("replay sale: %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales WHERE id = $1`, saleID).Scan(&count); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 sale row, got %d", count)
	}
}
