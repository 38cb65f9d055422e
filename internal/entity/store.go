// Package entity holds the authoritative in-process POS state. Every
// accepted operation is persisted through the local write-through layer
// before it becomes visible, and handed to the mutation outbound for
// remote delivery. Entity calls never block on the network.
package entity

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"kasirkita/pos/internal/domain"
	"kasirkita/pos/internal/local"
	"kasirkita/pos/internal/xid"
)

// Outbound receives every accepted local mutation. The reconciler
// implements it; Submit must only record the mutation (and wake the
// drain loop), never perform network calls inline.
type Outbound interface {
	Submit(m domain.Mutation) error
}

type Store struct {
	mu        sync.RWMutex
	products  map[int64]domain.Product
	customers map[int64]domain.Customer
	sales     []domain.Sale
	persist   local.Persister
	out       Outbound
}

func New(persist local.Persister) *Store {
	return &Store{
		products:  make(map[int64]domain.Product),
		customers: make(map[int64]domain.Customer),
		persist:   persist,
	}
}

// SetOutbound wires the mutation sink after construction; the reconciler
// needs the store and the store needs the reconciler.
func (s *Store) SetOutbound(out Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = out
}

// Restore loads the persisted snapshot, typically at startup while
// offline or before the initial remote load.
func (s *Store) Restore() error {
	products, err := s.persist.LoadProducts()
	if err != nil {
		return err
	}
	customers, err := s.persist.LoadCustomers()
	if err != nil {
		return err
	}
	sales, err := s.persist.LoadSales()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[int64]domain.Product, len(products))
	for _, p := range products {
		s.products[p.ID] = p
	}
	s.customers = make(map[int64]domain.Customer, len(customers))
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	s.sales = sales
	return nil
}

// Seed replaces local state with a remote snapshot (initial load). No
// mutations are emitted; the data already lives on the server.
func (s *Store) Seed(products []domain.Product, customers []domain.Customer, sales []domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist.SaveProducts(products); err != nil {
		return fmt.Errorf("persist products: %w", err)
	}
	if err := s.persist.SaveCustomers(customers); err != nil {
		return fmt.Errorf("persist customers: %w", err)
	}
	if err := s.persist.SaveSales(sales); err != nil {
		return fmt.Errorf("persist sales: %w", err)
	}

	s.products = make(map[int64]domain.Product, len(products))
	for _, p := range products {
		s.products[p.ID] = p
	}
	s.customers = make(map[int64]domain.Customer, len(customers))
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	s.sales = append([]domain.Sale(nil), sales...)
	return nil
}

// SeedProducts replaces only the product catalog, leaving customers and
// sales as restored.
func (s *Store) SeedProducts(products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist.SaveProducts(products); err != nil {
		return fmt.Errorf("persist products: %w", err)
	}

	s.products = make(map[int64]domain.Product, len(products))
	for _, p := range products {
		s.products[p.ID] = p
	}
	return nil
}

func (s *Store) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products
}

func (s *Store) Customers() []domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers
}

func (s *Store) Sales() []domain.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Sale(nil), s.sales...)
}

func (s *Store) ProductByID(id int64) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *Store) ProductByBarcode(barcode string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Barcode == barcode {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrNotFound
}

func (s *Store) CustomerByID(id int64) (domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrNotFound
	}
	return c, nil
}

// CreateProduct validates and stores a new product under a temporary
// identifier. The permanent identifier arrives asynchronously when the
// reconciler confirms the create against the remote store.
func (s *Store) CreateProduct(p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Barcode = strings.TrimSpace(p.Barcode)
	p.Category = strings.TrimSpace(p.Category)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProduct(p); err != nil {
		return domain.Product{}, err
	}
	for _, existing := range s.products {
		if existing.Barcode == p.Barcode {
			return domain.Product{}, fmt.Errorf("%w: barcode %s", domain.ErrDuplicateKey, p.Barcode)
		}
	}

	p.ID = xid.Temp()
	s.products[p.ID] = p
	if err := s.persist.SaveProducts(s.productsLocked()); err != nil {
		delete(s.products, p.ID)
		return domain.Product{}, fmt.Errorf("persist products: %w", err)
	}

	created := p
	if err := s.submitLocked(domain.Mutation{
		ID:      xid.New("mut"),
		Kind:    domain.MutationCreate,
		Entity:  domain.EntityProduct,
		TempID:  p.ID,
		Product: &created,
	}); err != nil {
		delete(s.products, p.ID)
		_ = s.persist.SaveProducts(s.productsLocked())
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(id int64, upd domain.ProductUpdate) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}

	updated := previous
	if upd.Name != nil {
		updated.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*upd.Barcode)
	}
	if upd.PriceCents != nil {
		updated.PriceCents = *upd.PriceCents
	}
	if upd.Stock != nil {
		updated.Stock = *upd.Stock
	}
	if upd.Category != nil {
		updated.Category = strings.TrimSpace(*upd.Category)
	}
	if upd.Image != nil {
		updated.Image = *upd.Image
	}
	if err := validateProduct(updated); err != nil {
		return domain.Product{}, err
	}
	for _, existing := range s.products {
		if existing.ID != id && existing.Barcode == updated.Barcode {
			return domain.Product{}, fmt.Errorf("%w: barcode %s", domain.ErrDuplicateKey, updated.Barcode)
		}
	}

	s.products[id] = updated
	if err := s.persist.SaveProducts(s.productsLocked()); err != nil {
		s.products[id] = previous
		return domain.Product{}, fmt.Errorf("persist products: %w", err)
	}

	payload := updated
	if err := s.submitLocked(domain.Mutation{
		ID:        xid.New("mut"),
		Kind:      domain.MutationUpdate,
		Entity:    domain.EntityProduct,
		ProductID: id,
		Product:   &payload,
	}); err != nil {
		s.products[id] = previous
		_ = s.persist.SaveProducts(s.productsLocked())
		return domain.Product{}, err
	}
	return updated, nil
}

// DeleteProduct removes a product, unless a persisted sale references it;
// then the record stays and its stock drops to zero so sales history
// never dangles a missing product.
func (s *Store) DeleteProduct(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.products[id]
	if !ok {
		return domain.ErrNotFound
	}

	if s.productReferencedLocked(id) {
		zeroed := previous
		zeroed.Stock = 0
		s.products[id] = zeroed
		if err := s.persist.SaveProducts(s.productsLocked()); err != nil {
			s.products[id] = previous
			return fmt.Errorf("persist products: %w", err)
		}
		payload := zeroed
		if err := s.submitLocked(domain.Mutation{
			ID:        xid.New("mut"),
			Kind:      domain.MutationUpdate,
			Entity:    domain.EntityProduct,
			ProductID: id,
			Product:   &payload,
		}); err != nil {
			s.products[id] = previous
			_ = s.persist.SaveProducts(s.productsLocked())
			return err
		}
		return nil
	}

	delete(s.products, id)
	if err := s.persist.SaveProducts(s.productsLocked()); err != nil {
		s.products[id] = previous
		return fmt.Errorf("persist products: %w", err)
	}
	if err := s.submitLocked(domain.Mutation{
		ID:        xid.New("mut"),
		Kind:      domain.MutationDelete,
		Entity:    domain.EntityProduct,
		ProductID: id,
	}); err != nil {
		s.products[id] = previous
		_ = s.persist.SaveProducts(s.productsLocked())
		return err
	}
	return nil
}

func (s *Store) CreateCustomer(c domain.Customer) (domain.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Name == "" || c.Phone == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer requires name and phone", domain.ErrValidation)
	}

	c.ID = xid.Temp()
	s.customers[c.ID] = c
	if err := s.persist.SaveCustomers(s.customersLocked()); err != nil {
		delete(s.customers, c.ID)
		return domain.Customer{}, fmt.Errorf("persist customers: %w", err)
	}

	created := c
	if err := s.submitLocked(domain.Mutation{
		ID:       xid.New("mut"),
		Kind:     domain.MutationCreate,
		Entity:   domain.EntityCustomer,
		TempID:   c.ID,
		Customer: &created,
	}); err != nil {
		delete(s.customers, c.ID)
		_ = s.persist.SaveCustomers(s.customersLocked())
		return domain.Customer{}, err
	}
	return c, nil
}

func (s *Store) UpdateCustomer(id int64, upd domain.CustomerUpdate) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrNotFound
	}

	updated := previous
	if upd.Name != nil {
		updated.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Phone != nil {
		updated.Phone = strings.TrimSpace(*upd.Phone)
	}
	if upd.Email != nil {
		updated.Email = strings.TrimSpace(*upd.Email)
	}
	if updated.Name == "" || updated.Phone == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer requires name and phone", domain.ErrValidation)
	}

	s.customers[id] = updated
	if err := s.persist.SaveCustomers(s.customersLocked()); err != nil {
		s.customers[id] = previous
		return domain.Customer{}, fmt.Errorf("persist customers: %w", err)
	}

	payload := updated
	if err := s.submitLocked(domain.Mutation{
		ID:         xid.New("mut"),
		Kind:       domain.MutationUpdate,
		Entity:     domain.EntityCustomer,
		CustomerID: id,
		Customer:   &payload,
	}); err != nil {
		s.customers[id] = previous
		_ = s.persist.SaveCustomers(s.customersLocked())
		return domain.Customer{}, err
	}
	return updated, nil
}

func (s *Store) DeleteCustomer(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.customers[id]
	if !ok {
		return domain.ErrNotFound
	}

	delete(s.customers, id)
	if err := s.persist.SaveCustomers(s.customersLocked()); err != nil {
		s.customers[id] = previous
		return fmt.Errorf("persist customers: %w", err)
	}
	if err := s.submitLocked(domain.Mutation{
		ID:         xid.New("mut"),
		Kind:       domain.MutationDelete,
		Entity:     domain.EntityCustomer,
		CustomerID: id,
	}); err != nil {
		s.customers[id] = previous
		_ = s.persist.SaveCustomers(s.customersLocked())
		return err
	}
	return nil
}

// AddSale persists a completed sale. Sales are immutable; there is no
// update or delete path.
func (s *Store) AddSale(sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" || len(sale.Items) == 0 {
		return fmt.Errorf("%w: sale requires id and line items", domain.ErrValidation)
	}
	if sale.PaymentCents < sale.TotalCents {
		return fmt.Errorf("%w: payment %d below total %d", domain.ErrInsufficientPayment, sale.PaymentCents, sale.TotalCents)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	s.sales = append(s.sales, sale)
	if err := s.persist.SaveSales(s.sales); err != nil {
		s.sales = s.sales[:len(s.sales)-1]
		return fmt.Errorf("persist sales: %w", err)
	}

	payload := sale
	if err := s.submitLocked(domain.Mutation{
		ID:     xid.New("mut"),
		Kind:   domain.MutationCreate,
		Entity: domain.EntitySale,
		Sale:   &payload,
	}); err != nil {
		s.sales = s.sales[:len(s.sales)-1]
		_ = s.persist.SaveSales(s.sales)
		return err
	}
	return nil
}

// RewriteProductID relinks a product from its temporary identifier to
// the server-assigned one, including sale line references recorded while
// offline. Called by the reconciler after a create confirms.
func (s *Store) RewriteProductID(tempID int64, permID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[tempID]
	if !ok {
		return nil
	}
	delete(s.products, tempID)
	p.ID = permID
	s.products[permID] = p

	salesChanged := false
	for i := range s.sales {
		for j := range s.sales[i].Items {
			if s.sales[i].Items[j].ProductID == tempID {
				s.sales[i].Items[j].ProductID = permID
				salesChanged = true
			}
		}
	}

	if err := s.persist.SaveProducts(s.productsLocked()); err != nil {
		return fmt.Errorf("persist products: %w", err)
	}
	if salesChanged {
		if err := s.persist.SaveSales(s.sales); err != nil {
			return fmt.Errorf("persist sales: %w", err)
		}
	}
	return nil
}

func (s *Store) RewriteCustomerID(tempID int64, permID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[tempID]
	if !ok {
		return nil
	}
	delete(s.customers, tempID)
	c.ID = permID
	s.customers[permID] = c

	salesChanged := false
	for i := range s.sales {
		if s.sales[i].CustomerID == tempID {
			s.sales[i].CustomerID = permID
			salesChanged = true
		}
	}

	if err := s.persist.SaveCustomers(s.customersLocked()); err != nil {
		return fmt.Errorf("persist customers: %w", err)
	}
	if salesChanged {
		if err := s.persist.SaveSales(s.sales); err != nil {
			return fmt.Errorf("persist sales: %w", err)
		}
	}
	return nil
}

func (s *Store) submitLocked(m domain.Mutation) error {
	if s.out == nil {
		return nil
	}
	m.EnqueuedAt = time.Now().UTC()
	return s.out.Submit(m)
}

func (s *Store) productReferencedLocked(id int64) bool {
	for _, sale := range s.sales {
		for _, line := range sale.Items {
			if line.ProductID == id {
				return true
			}
		}
	}
	return false
}

func (s *Store) productsLocked() []domain.Product {
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return products
}

func (s *Store) customersLocked() []domain.Customer {
	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return customers
}

func validateProduct(p domain.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: product requires a name", domain.ErrValidation)
	}
	if p.Barcode == "" {
		return fmt.Errorf("%w: product requires a barcode", domain.ErrValidation)
	}
	if p.PriceCents < 1 {
		return fmt.Errorf("%w: price must be positive", domain.ErrValidation)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", domain.ErrValidation)
	}
	return nil
}
