package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	OrderStatusPending      = "pending"
	OrderStatusPaid         = "paid"
	OrderStatusFailed       = "failed"
	OrderStatusCancelled    = "cancelled"
	OrderStatusManualReview = "manual_review"

	EmailStatusNone    = "none"
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

// Order is one checkout attempt. Orders are never deleted; they are retained
// for audit and tax purposes, so there is no soft-delete column.
type Order struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	PublicID      string      `gorm:"uniqueIndex;type:varchar(36);not null" json:"public_id"`
	CustomerEmail string      `gorm:"type:varchar(200);not null;index" json:"customer_email" validate:"required,email,max=200"`
	GiftEmail     string      `gorm:"type:varchar(200)" json:"gift_email,omitempty" validate:"omitempty,email,max=200"`
	GiftMessage   string      `gorm:"type:text" json:"gift_message,omitempty" validate:"max=2000"`
	ClientIP      string      `gorm:"type:varchar(45)" json:"-"`
	TotalCents    int64       `gorm:"not null" json:"total_cents" validate:"gt=0"`
	Currency      string      `gorm:"type:varchar(3);not null" json:"currency" validate:"required,len=3"`
	Status        string      `gorm:"type:varchar(20);not null;default:'pending';index" json:"status" validate:"oneof=pending paid failed cancelled manual_review"`
	EmailStatus   string      `gorm:"type:varchar(10);not null;default:'none'" json:"email_status" validate:"oneof=none pending sent failed"`
	Items         []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt     time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderItem is one purchased denomination of one product within an order.
// AssignedCodeID is written exactly once, by the inventory claim.
type OrderItem struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderID        uint      `gorm:"not null;index" json:"order_id"`
	ProductID      uint      `gorm:"not null;index" json:"product_id"`
	NominalCents   int64     `gorm:"not null" json:"nominal_cents" validate:"gt=0"`
	PriceCents     int64     `gorm:"not null" json:"price_cents" validate:"gt=0"`
	AssignedCodeID *uint     `gorm:"index" json:"assigned_code_id,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Order) Validate() error {
	v := validator.New()
	return v.Struct(o)
}

// NewOrder builds a pending order with a fresh public reference.
func NewOrder(customerEmail, giftEmail, giftMessage, clientIP, currency string) *Order {
	return &Order{
		PublicID:      uuid.New().String(),
		CustomerEmail: customerEmail,
		GiftEmail:     giftEmail,
		GiftMessage:   giftMessage,
		ClientIP:      clientIP,
		Currency:      currency,
		Status:        OrderStatusPending,
		EmailStatus:   EmailStatusNone,
	}
}

// HasGiftRecipient reports whether a distinct gift address was supplied.
func (o *Order) HasGiftRecipient() bool {
	return o.GiftEmail != "" && o.GiftEmail != o.CustomerEmail
}

// CanTransitionTo enforces the forward-only order lifecycle. An order never
// reverts from paid, and manual_review is terminal for the automated path.
func (o *Order) CanTransitionTo(next string) bool {
	switch o.Status {
	case OrderStatusPending:
		return next == OrderStatusPaid || next == OrderStatusFailed || next == OrderStatusCancelled
	case OrderStatusPaid:
		return next == OrderStatusManualReview
	default:
		return false
	}
}

// TransitionTo validates and applies a status change in memory. The caller
// persists it; invalid transitions are rejected before any write happens.
func (o *Order) TransitionTo(next string) error {
	if !o.CanTransitionTo(next) {
		return fmt.Errorf("invalid order transition %s -> %s", o.Status, next)
	}
	o.Status = next
	return nil
}
