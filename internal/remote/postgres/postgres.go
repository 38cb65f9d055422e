// Package postgres backs the remote store contract with a hosted
// Postgres database over database/sql and the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kasirkita/pos/internal/domain"
	"kasirkita/pos/internal/remote"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// An unreachable database is not fatal: the terminal starts offline
	// and the prober reports when it comes back.
	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Printf("[postgres] remote store unreachable at startup: %v", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, barcode, price_cents, stock, category, image, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
		RETURNING id
	`, p.Name, p.Barcode, p.PriceCents, p.Stock, p.Category, nullIfEmpty(p.Image)).Scan(&id)
	if err != nil {
		return 0, classify(err)
	}
	return id, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, p domain.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, price_cents = $4, stock = $5, category = $6, image = $7, updated_at = now()
		WHERE id = $1
	`, id, p.Name, p.Barcode, p.PriceCents, p.Stock, p.Category, nullIfEmpty(p.Image))
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return remote.Transient(err)
	}
	if affected == 0 {
		return remote.Permanent(fmt.Errorf("product %d: %v", id, domain.ErrNotFound))
	}
	return nil
}

// DeleteOrZeroStockProduct applies the history-preserving delete policy
// server-side as well: a product referenced by any sale line keeps its
// row with stock zeroed.
func (s *Store) DeleteOrZeroStockProduct(ctx context.Context, id int64) error {
	var referenced bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sale_items WHERE product_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return classify(err)
	}

	var res sql.Result
	if referenced {
		res, err = s.db.ExecContext(ctx, `
			UPDATE products SET stock = 0, updated_at = now() WHERE id = $1
		`, id)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	}
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return remote.Transient(err)
	}
	if affected == 0 {
		return remote.Permanent(fmt.Errorf("product %d: %v", id, domain.ErrNotFound))
	}
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, phone, email, created_at, updated_at)
		VALUES ($1,$2,$3,now(),now())
		RETURNING id
	`, c.Name, c.Phone, nullIfEmpty(c.Email)).Scan(&id)
	if err != nil {
		return 0, classify(err)
	}
	return id, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, id int64, c domain.Customer) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, updated_at = now()
		WHERE id = $1
	`, id, c.Name, c.Phone, nullIfEmpty(c.Email))
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return remote.Transient(err)
	}
	if affected == 0 {
		return remote.Permanent(fmt.Errorf("customer %d: %v", id, domain.ErrNotFound))
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return remote.Transient(err)
	}
	if affected == 0 {
		return remote.Permanent(fmt.Errorf("customer %d: %v", id, domain.ErrNotFound))
	}
	return nil
}

// CreateSale inserts the sale and its lines in one transaction. A
// duplicate client identifier means an earlier replay already landed;
// that counts as success.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return remote.Transient(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, cashier_id, cashier_name, customer_id, customer_name,
			subtotal_cents, tax_cents, discount_cents, total_cents,
			payment_method, payment_cents, change_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, sale.ID, sale.CashierID, sale.CashierName, nullIfZero(sale.CustomerID), nullIfEmpty(sale.CustomerName),
		sale.SubtotalCents, sale.TaxCents, sale.DiscountCents, sale.TotalCents,
		string(sale.PaymentMethod), sale.PaymentCents, sale.ChangeCents, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return classify(err)
	}

	for _, line := range sale.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, unit_price_cents, quantity, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, line.ProductID, line.ProductName, line.UnitPriceCents, line.Quantity, line.SubtotalCents)
		if err != nil {
			return classify(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return remote.Transient(err)
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, barcode, price_cents, stock, category, COALESCE(image, '')
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Barcode, &p.PriceCents, &p.Stock, &p.Category, &p.Image); err != nil {
			return nil, remote.Transient(err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, remote.Transient(err)
	}
	return products, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, COALESCE(email, '')
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email); err != nil {
			return nil, remote.Transient(err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, remote.Transient(err)
	}
	return customers, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cashier_id, cashier_name, COALESCE(customer_id, 0), COALESCE(customer_name, ''),
			subtotal_cents, tax_cents, discount_cents, total_cents,
			payment_method, payment_cents, change_cents, created_at
		FROM sales
		ORDER BY created_at
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	index := make(map[string]int)
	for rows.Next() {
		var sale domain.Sale
		var method string
		if err := rows.Scan(&sale.ID, &sale.CashierID, &sale.CashierName, &sale.CustomerID, &sale.CustomerName,
			&sale.SubtotalCents, &sale.TaxCents, &sale.DiscountCents, &sale.TotalCents,
			&method, &sale.PaymentCents, &sale.ChangeCents, &sale.CreatedAt); err != nil {
			return nil, remote.Transient(err)
		}
		sale.PaymentMethod = domain.PaymentMethod(method)
		sale.CreatedAt = sale.CreatedAt.UTC()
		index[sale.ID] = len(sales)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, remote.Transient(err)
	}

	lineRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, unit_price_cents, quantity, subtotal_cents
		FROM sale_items
		ORDER BY sale_id
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := lineRows.Scan(&saleID, &line.ProductID, &line.ProductName, &line.UnitPriceCents, &line.Quantity, &line.SubtotalCents); err != nil {
			return nil, remote.Transient(err)
		}
		if i, ok := index[saleID]; ok {
			sales[i].Items = append(sales[i].Items, line)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, remote.Transient(err)
	}
	return sales, nil
}

// classify splits failures into the reconciler's two buckets: integrity
// and data errors from the server are definitive, everything else
// (network, timeout, connection loss) is retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return remote.Permanent(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:2] {
		case "22", "23", "42":
			return remote.Permanent(err)
		}
	}
	return remote.Transient(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullIfZero(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
