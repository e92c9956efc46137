package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusNew       OrderStatus = "NEW"
	StatusPaid      OrderStatus = "PAID"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus returns the status named by s, or false when s is not a
// known status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusNew, StatusPaid, StatusDelivered, StatusCancelled:
		return st, true
	}
	return "", false
}

func (s OrderStatus) CanPay() bool     { return s == StatusNew }
func (s OrderStatus) CanDeliver() bool { return s == StatusPaid }
func (s OrderStatus) CanCancel() bool  { return s == StatusNew || s == StatusPaid }

// Editable reports which parts of an order a customer may still change.
func (s OrderStatus) Editable() (delivery, payment, items bool) {
	switch s {
	case StatusNew:
		return true, true, true
	case StatusPaid:
		return true, false, false
	}
	return false, false, false
}

// CanTransitionTo reports whether an order may move from s to next.
//
//	NEW  -> PAID | CANCELLED
//	PAID -> DELIVERED | CANCELLED
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case StatusNew:
		return next == StatusPaid || next == StatusCancelled
	case StatusPaid:
		return next == StatusDelivered || next == StatusCancelled
	}
	return false
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type DeliveryInfo struct {
	Address      string     `json:"address"`
	DeliveryTime *time.Time `json:"deliveryTime"`
	CourierNotes string     `json:"courierNotes"`
}

// PaymentInfo keeps only what is safe to show back: the masked card number
// and its expiration date.
type PaymentInfo struct {
	CardNumber     string `json:"cardNumber"`
	ExpirationDate string `json:"expirationDate"`
}

// MaskCard keeps the last four digits of a card number.
func MaskCard(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Items       []OrderItem     `json:"items"`
	Delivery    DeliveryInfo    `json:"deliveryInfo"`
	Payment     PaymentInfo     `json:"paymentInfo"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// OrderFilter narrows an order listing. Empty fields match everything.
type OrderFilter struct {
	UserID string
	Status OrderStatus
}

// ItemsTotal sums price * quantity over items.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
