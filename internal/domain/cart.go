package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the per-session aggregate persisted as one document.
// Revision is bumped by the store on every successful replace.
type Cart struct {
	ID        string     `bson:"_id" json:"id"`
	SessionID string     `bson:"session_id" json:"session_id"`
	Items     []CartLine `bson:"items" json:"items"`
	Revision  int64      `bson:"revision" json:"revision"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartLine references a catalog product by id only; price and stock are resolved at read time.
type CartLine struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// FindLine returns the index of the line for productID or -1.
func (c *Cart) FindLine(productID string) int {
	for i, line := range c.Items {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// CloneItems returns a copy of the item list that is never nil.
func (c *Cart) CloneItems() []CartLine {
	items := make([]CartLine, len(c.Items))
	copy(items, c.Items)
	return items
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = c.CloneItems()
	return &cp
}

type ResolvedLine struct {
	CartLine
	Product Product
}

// Subtotal is the effective unit price times quantity.
func (l ResolvedLine) Subtotal() decimal.Decimal {
	return l.Product.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ResolvedCart joins a cart with the live catalog state of its products.
// Missing holds product ids that no longer exist in the catalog.
type ResolvedCart struct {
	Cart    *Cart
	Lines   []ResolvedLine
	Missing []string
	Total   decimal.Decimal
}
