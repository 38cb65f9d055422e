package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"kasirkita/pos/internal/domain"
)

const (
	productsFile  = "products.json"
	customersFile = "customers.json"
	salesFile     = "sales.json"
	queueFile     = "queue.json"
)

// Dir persists each record as a JSON file in one directory. Writes go to
// a temp file followed by rename, so a crash mid-write leaves the
// previous record intact.
type Dir struct {
	path string
}

func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) SaveProducts(products []domain.Product) error {
	return d.write(productsFile, products)
}

func (d *Dir) SaveCustomers(customers []domain.Customer) error {
	return d.write(customersFile, customers)
}

func (d *Dir) SaveSales(sales []domain.Sale) error {
	return d.write(salesFile, sales)
}

func (d *Dir) SaveQueue(mutations []domain.Mutation) error {
	return d.write(queueFile, mutations)
}

func (d *Dir) LoadProducts() ([]domain.Product, error) {
	var products []domain.Product
	if err := d.read(productsFile, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (d *Dir) LoadCustomers() ([]domain.Customer, error) {
	var customers []domain.Customer
	if err := d.read(customersFile, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (d *Dir) LoadSales() ([]domain.Sale, error) {
	var sales []domain.Sale
	if err := d.read(salesFile, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (d *Dir) LoadQueue() ([]domain.Mutation, error) {
	var mutations []domain.Mutation
	if err := d.read(queueFile, &mutations); err != nil {
		return nil, err
	}
	return mutations, nil
}

func (d *Dir) write(name string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	target := filepath.Join(d.path, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

// read leaves the destination untouched when the file does not exist yet.
func (d *Dir) read(name string, into any) error {
	payload, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(payload, into); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
