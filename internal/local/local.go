// Package local is the durable write-through persistence behind the
// entity store and the mutation queue. Four independent records are kept
// (products, customers, sales, queue); each save completes before the
// caller's in-memory change becomes visible, so an acknowledged local
// write survives a process crash.
package local

import "kasirkita/pos/internal/domain"

type Persister interface {
	SaveProducts(products []domain.Product) error
	SaveCustomers(customers []domain.Customer) error
	SaveSales(sales []domain.Sale) error
	SaveQueue(mutations []domain.Mutation) error

	LoadProducts() ([]domain.Product, error)
	LoadCustomers() ([]domain.Customer, error)
	LoadSales() ([]domain.Sale, error)
	LoadQueue() ([]domain.Mutation, error)
}

// Memory keeps the records in process memory only. Used in tests and as
// a stand-in when no data directory is configured. FailWrites makes every
// save return the given error, to exercise rollback paths.
type Memory struct {
	products   []domain.Product
	customers  []domain.Customer
	sales      []domain.Sale
	mutations  []domain.Mutation
	FailWrites error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveProducts(products []domain.Product) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.products = append([]domain.Product(nil), products...)
	return nil
}

func (m *Memory) SaveCustomers(customers []domain.Customer) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.customers = append([]domain.Customer(nil), customers...)
	return nil
}

func (m *Memory) SaveSales(sales []domain.Sale) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.sales = append([]domain.Sale(nil), sales...)
	return nil
}

func (m *Memory) SaveQueue(mutations []domain.Mutation) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.mutations = append([]domain.Mutation(nil), mutations...)
	return nil
}

func (m *Memory) LoadProducts() ([]domain.Product, error) {
	return append([]domain.Product(nil), m.products...), nil
}

func (m *Memory) LoadCustomers() ([]domain.Customer, error) {
	return append([]domain.Customer(nil), m.customers...), nil
}

func (m *Memory) LoadSales() ([]domain.Sale, error) {
	return append([]domain.Sale(nil), m.sales...), nil
}

func (m *Memory) LoadQueue() ([]domain.Mutation, error) {
	return append([]domain.Mutation(nil), m.mutations...), nil
}
