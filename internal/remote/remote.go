// Package remote defines the contract against the backing system of
// record. Concrete backends (hosted Postgres, REST API) live in
// subpackages; the reconciler only sees this interface and the
// transient/permanent error classification.
package remote

import (
	"context"
	"fmt"

	"kasirkita/pos/internal/domain"
)

type Store interface {
	Ping(ctx context.Context) error

	// Creates return the server-assigned identifier. Sale identifiers
	// originate client-side and are accepted as-is.
	CreateProduct(ctx context.Context, p domain.Product) (int64, error)
	UpdateProduct(ctx context.Context, id int64, p domain.Product) error
	DeleteOrZeroStockProduct(ctx context.Context, id int64) error

	CreateCustomer(ctx context.Context, c domain.Customer) (int64, error)
	UpdateCustomer(ctx context.Context, id int64, c domain.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	CreateSale(ctx context.Context, sale domain.Sale) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
}

// Transient wraps a failure the reconciler should retry later. The
// cause stays in the chain for errors.As inspection.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrTransientRemote, err)
}

// Permanent wraps a definitive rejection; the mutation will be dropped
// and reported.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrPermanentRemote, err)
}
