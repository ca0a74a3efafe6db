package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is owned by the platform; the gateway reads it and refreshes it
// after checkout completion attaches an order.
type Payment struct {
	ID            int64
	Token         string
	Gateway       string
	IsActive      bool
	ReturnURL     string
	CheckoutToken *string
	OrderID       *string
	Total         decimal.Decimal
	Currency      string
	CustomerEmail string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasCheckout reports whether the payment is still bound to a checkout.
func (p *Payment) HasCheckout() bool {
	return p.CheckoutToken != nil && *p.CheckoutToken != ""
}

type Checkout struct {
	Token       string
	Email       string
	Total       decimal.Decimal
	Currency    string
	UserID      *string
	CompletedAt *time.Time
	CreatedAt   time.Time
}

func (c *Checkout) Completed() bool { return c.CompletedAt != nil }

type OrderStatus string

const (
	OrderStatusUnfulfilled OrderStatus = "unfulfilled"
)

type Order struct {
	ID            string
	CheckoutToken string
	PaymentID     int64
	Total         decimal.Decimal
	Currency      string
	Email         string
	Status        OrderStatus
	CreatedAt     time.Time
}
