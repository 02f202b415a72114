package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderCompleted  OrderStatus = "Completed"
	OrderCancelled  OrderStatus = "Cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

const PaymentCOD = "cod"

type OrderLine struct {
	ProductID           string          `json:"product_id"`
	ProductName         string          `json:"product_name"`
	Quantity            int             `json:"quantity"`
	UnitPriceAtPurchase decimal.Decimal `json:"unit_price_at_purchase"`
}

// LineTotal is the snapshot price times quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type ShippingDetails struct {
	FullName      string `json:"full_name"`
	Address       string `json:"address"`
	ContactNumber string `json:"contact_number"`
}

type Order struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	Lines         []OrderLine      `json:"lines"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	Status        OrderStatus      `json:"status"`
	Shipping      *ShippingDetails `json:"shipping,omitempty"`
	PaymentMethod string           `json:"payment_method"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// OrderFilter selects orders for listing. Empty fields match everything.
type OrderFilter struct {
	UserID string
	Status OrderStatus
}
