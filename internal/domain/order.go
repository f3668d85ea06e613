package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

// OrderItem captures the price at checkout time, unlike CartLine.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Shopper holds the contact and payment fields kept on an order.
// Only the last four digits of the card are stored.
type Shopper struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	City           string `json:"city"`
	ZipCode        string `json:"zip_code"`
	CardType       string `json:"card_type"`
	CardHolderName string `json:"card_holder_name"`
	CardLastFour   string `json:"card_last_four"`
}

type Order struct {
	ID          uuid.UUID       `json:"id"`
	SessionID   string          `json:"session_id"`
	CartID      string          `json:"cart_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Shopper     Shopper         `json:"shopper"`
	CreatedAt   time.Time       `json:"created_at"`

	// IdempotencyKey is the client key the order was placed under, if any.
	IdempotencyKey string `json:"-"`
}

// CheckoutCompletedEvent is the payload published once an order is stored.
type CheckoutCompletedEvent struct {
	OrderID     string          `json:"order_id"`
	SessionID   string          `json:"session_id"`
	CartID      string          `json:"cart_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	CompletedAt time.Time       `json:"completed_at"`
}

const EventCheckoutCompleted = "checkout.completed"
