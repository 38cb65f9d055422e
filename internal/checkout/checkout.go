// Package checkout builds one sale at a time for a cashier session:
// items are collected in a cart, totals computed with the fixed tax
// rate, and completion records the sale and stock movements through the
// entity store.
package checkout

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"kasirkita/pos/internal/domain"
	"kasirkita/pos/internal/entity"
)

// TaxRatePercent is charged on the cart subtotal before discount.
const TaxRatePercent = 10

// Totals is the running breakdown of the cart, recomputed on every
// change.
type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	DiscountCents int64
	TotalCents    int64
}

// Builder assembles a single pending sale. All methods are safe for
// concurrent use; completion atomically records the sale and resets the
// cart for the next one.
type Builder struct {
	entities *entity.Store

	cashierID   int64
	cashierName string

	mu       sync.Mutex
	lines    []domain.SaleLine
	discount int64
	customer *domain.Customer
}

func New(entities *entity.Store, cashierID int64, cashierName string) *Builder {
	return &Builder{
		entities:    entities,
		cashierID:   cashierID,
		cashierName: cashierName,
	}
}

// AddItem puts quantity units of the product into the cart, merging with
// an existing line for the same product. Name and unit price are
// snapshotted from the catalog as it stands now. The combined cart
// quantity may not exceed current stock.
func (b *Builder) AddItem(productID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
	}

	p, err := b.entities.ProductByID(productID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.lineIndexLocked(productID)
	inCart := 0
	if idx >= 0 {
		inCart = b.lines[idx].Quantity
	}
	if inCart+quantity > p.Stock {
		return fmt.Errorf("%w: %s has %d in stock, cart wants %d", domain.ErrInsufficientStock, p.Name, p.Stock, inCart+quantity)
	}

	if idx >= 0 {
		b.lines[idx].Quantity += quantity
		b.lines[idx].SubtotalCents = b.lines[idx].UnitPriceCents * int64(b.lines[idx].Quantity)
		return nil
	}
	b.lines = append(b.lines, domain.SaleLine{
		ProductID:      p.ID,
		ProductName:    p.Name,
		UnitPriceCents: p.PriceCents,
		Quantity:       quantity,
		SubtotalCents:  p.PriceCents * int64(quantity),
	})
	return nil
}

// AddByBarcode is the scanner path: one unit of whatever the barcode
// resolves to.
func (b *Builder) AddByBarcode(barcode string) error {
	p, err := b.entities.ProductByBarcode(barcode)
	if err != nil {
		return err
	}
	return b.AddItem(p.ID, 1)
}

// SetQuantity replaces the cart quantity for a product; zero removes the
// line.
func (b *Builder) SetQuantity(productID int64, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", domain.ErrValidation)
	}
	if quantity == 0 {
		return b.RemoveItem(productID)
	}

	p, err := b.entities.ProductByID(productID)
	if err != nil {
		return err
	}
	if quantity > p.Stock {
		return fmt.Errorf("%w: %s has %d in stock, cart wants %d", domain.ErrInsufficientStock, p.Name, p.Stock, quantity)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.lineIndexLocked(productID)
	if idx < 0 {
		return fmt.Errorf("%w: product %d not in cart", domain.ErrNotFound, productID)
	}
	b.lines[idx].Quantity = quantity
	b.lines[idx].SubtotalCents = b.lines[idx].UnitPriceCents * int64(quantity)
	return nil
}

func (b *Builder) RemoveItem(productID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.lineIndexLocked(productID)
	if idx < 0 {
		return fmt.Errorf("%w: product %d not in cart", domain.ErrNotFound, productID)
	}
	b.lines = append(b.lines[:idx], b.lines[idx+1:]...)
	return nil
}

// SetDiscount applies a flat discount in cents. It may not exceed the
// taxed subtotal; a sale never totals below zero.
func (b *Builder) SetDiscount(cents int64) error {
	if cents < 0 {
		return fmt.Errorf("%w: discount must not be negative", domain.ErrValidation)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subtotal, tax := b.amountsLocked()
	if cents > subtotal+tax {
		return fmt.Errorf("%w: discount %d exceeds taxed subtotal %d", domain.ErrValidation, cents, subtotal+tax)
	}
	b.discount = cents
	return nil
}

// AttachCustomer links the sale to a known customer; id 0 detaches.
func (b *Builder) AttachCustomer(customerID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if customerID == 0 {
		b.customer = nil
		return nil
	}
	c, err := b.entities.CustomerByID(customerID)
	if err != nil {
		return err
	}
	b.customer = &c
	return nil
}

func (b *Builder) Lines() []domain.SaleLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.SaleLine(nil), b.lines...)
}

func (b *Builder) Totals() Totals {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalsLocked()
}

// Clear abandons the pending sale.
func (b *Builder) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

// Complete finalizes the sale: it validates payment against the total,
// records the sale through the entity store, then writes the stock
// decrements. On any validation or recording error the cart is left
// exactly as it was, so the cashier can correct and retry.
func (b *Builder) Complete(method domain.PaymentMethod, paymentCents int64) (domain.Sale, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.lines) == 0 {
		return domain.Sale{}, domain.ErrEmptyCart
	}
	if !method.Valid() {
		return domain.Sale{}, fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, method)
	}

	totals := b.totalsLocked()
	if paymentCents < totals.TotalCents {
		return domain.Sale{}, fmt.Errorf("%w: payment %d below total %d", domain.ErrInsufficientPayment, paymentCents, totals.TotalCents)
	}

	// Stock may have moved since items were added; re-check before
	// committing anything.
	for _, line := range b.lines {
		p, err := b.entities.ProductByID(line.ProductID)
		if err != nil {
			return domain.Sale{}, err
		}
		if line.Quantity > p.Stock {
			return domain.Sale{}, fmt.Errorf("%w: %s has %d in stock, cart wants %d", domain.ErrInsufficientStock, p.Name, p.Stock, line.Quantity)
		}
	}

	sale := domain.Sale{
		ID:            uuid.New().String(),
		CashierID:     b.cashierID,
		CashierName:   b.cashierName,
		Items:         append([]domain.SaleLine(nil), b.lines...),
		SubtotalCents: totals.SubtotalCents,
		TaxCents:      totals.TaxCents,
		DiscountCents: totals.DiscountCents,
		TotalCents:    totals.TotalCents,
		PaymentMethod: method,
		PaymentCents:  paymentCents,
		ChangeCents:   paymentCents - totals.TotalCents,
		CreatedAt:     time.Now().UTC(),
	}
	if b.customer != nil {
		sale.CustomerID = b.customer.ID
		sale.CustomerName = b.customer.Name
	}

	if err := b.entities.AddSale(sale); err != nil {
		return domain.Sale{}, err
	}

	// The sale is recorded; stock write failures are surfaced but do
	// not unwind it.
	for _, line := range sale.Items {
		p, err := b.entities.ProductByID(line.ProductID)
		if err != nil {
			return sale, fmt.Errorf("sale %s recorded, stock update for product %d failed: %w", sale.ID, line.ProductID, err)
		}
		stock := p.Stock - line.Quantity
		if _, err := b.entities.UpdateProduct(line.ProductID, domain.ProductUpdate{Stock: &stock}); err != nil {
			return sale, fmt.Errorf("sale %s recorded, stock update for product %d failed: %w", sale.ID, line.ProductID, err)
		}
	}

	b.resetLocked()
	return sale, nil
}

func (b *Builder) lineIndexLocked(productID int64) int {
	for i, line := range b.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func (b *Builder) amountsLocked() (subtotal int64, tax int64) {
	for _, line := range b.lines {
		subtotal += line.SubtotalCents
	}
	tax = subtotal * TaxRatePercent / 100
	return subtotal, tax
}

func (b *Builder) totalsLocked() Totals {
	subtotal, tax := b.amountsLocked()
	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		DiscountCents: b.discount,
		TotalCents:    subtotal + tax - b.discount,
	}
}

func (b *Builder) resetLocked() {
	b.lines = nil
	b.discount = 0
	b.customer = nil
}
