package domain

import "time"

// Product is a catalog entry. The identifier is assigned by the remote
// store; products created while offline carry a temporary clock-derived
// identifier until reconciliation rewrites it.
type Product struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Barcode    string `json:"barcode"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	Category   string `json:"category"`
	Image      string `json:"image,omitempty"`
}

type ProductUpdate struct {
	Name       *string `json:"name,omitempty"`
	Barcode    *string `json:"barcode,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
	Category   *string `json:"category,omitempty"`
	Image      *string `json:"image,omitempty"`
}

type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type CustomerUpdate struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

// SaleLine snapshots name and unit price at the time the item was added,
// so later catalog edits never change recorded sales.
type SaleLine struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentDigital PaymentMethod = "digital"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentDigital:
		return true
	}
	return false
}

// Sale is immutable once created. Its identifier is generated client-side
// and accepted as-is by the remote store, so it is never rewritten.
type Sale struct {
	ID            string        `json:"id"`
	CashierID     int64         `json:"cashier_id"`
	CashierName   string        `json:"cashier_name"`
	CustomerID    int64         `json:"customer_id,omitempty"`
	CustomerName  string        `json:"customer_name,omitempty"`
	Items         []SaleLine    `json:"items"`
	SubtotalCents int64         `json:"subtotal_cents"`
	TaxCents      int64         `json:"tax_cents"`
	DiscountCents int64         `json:"discount_cents"`
	TotalCents    int64         `json:"total_cents"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentCents  int64         `json:"payment_cents"`
	ChangeCents   int64         `json:"change_cents"`
	CreatedAt     time.Time     `json:"created_at"`
}

type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

type EntityKind string

const (
	EntityProduct  EntityKind = "product"
	EntityCustomer EntityKind = "customer"
	EntitySale     EntityKind = "sale"
)

// Mutation is one pending write awaiting remote confirmation. It is a
// tagged record rather than a captured callback so the queue can be
// persisted and replayed across restarts. Exactly one payload pointer is
// set, matching Entity; ProductID and CustomerID carry the target of
// updates and deletes. TempID links a create issued offline to its
// temporary identifier so the reconciler can rewrite references once the
// remote store assigns the permanent one.
type Mutation struct {
	ID         string       `json:"id"`
	Seq        uint64       `json:"seq"`
	Kind       MutationKind `json:"kind"`
	Entity     EntityKind   `json:"entity"`
	ProductID  int64        `json:"product_id,omitempty"`
	CustomerID int64        `json:"customer_id,omitempty"`
	TempID     int64        `json:"temp_id,omitempty"`
	Product    *Product     `json:"product,omitempty"`
	Customer   *Customer    `json:"customer,omitempty"`
	Sale       *Sale        `json:"sale,omitempty"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}
