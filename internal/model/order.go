package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// ShippingAddress is the canonical address stored on an order.
type ShippingAddress struct {
	Name       string `gorm:"size:255" json:"name"`
	Line1      string `gorm:"size:255" json:"line1"`
	Line2      string `gorm:"size:255" json:"line2"`
	City       string `gorm:"size:128" json:"city"`
	State      string `gorm:"size:128" json:"state"`
	PostalCode string `gorm:"size:32" json:"postalCode"`
	Country    string `gorm:"size:64" json:"country"`
	Phone      string `gorm:"size:64" json:"phone"`
}

type Order struct {
	ID              string          `gorm:"primaryKey;size:64;not null"`
	UserID          string          `gorm:"size:64;index;not null"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ShippingCost    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Tax             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_"`
	StripeSessionID string          `gorm:"size:128;uniqueIndex;not null"`
	PaymentStatus   PaymentStatus   `gorm:"size:16;index;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → orders.id
	OrderID     string          `gorm:"size:64;index;not null"`
	ProductID   string          `gorm:"size:64;not null"`
	ProductName string          `gorm:"size:255"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity    int             `gorm:"not null"`
	CreatedAt   time.Time
}

// CartItem is owned by the storefront; the reconciler only converts it into an order.
type CartItem struct {
	ID          uint            `gorm:"primaryKey"`
	UserID      string          `gorm:"size:64;index;not null"`
	ProductID   string          `gorm:"size:64;not null"`
	ProductName string          `gorm:"size:255"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity    int             `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
