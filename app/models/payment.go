package models

import "time"

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Payment is the gateway-facing side of an order. ProcessedAt is the
// compare-and-swap guard for webhook processing: the row is claimed with a
// conditional update on "processed_at IS NULL", so concurrent webhook
// deliveries for the same bill can never both apply side effects.
type Payment struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrderID        uint       `gorm:"not null;uniqueIndex" json:"order_id"`
	Order          Order      `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Provider       string     `gorm:"type:varchar(20);not null;index:ux_payments_provider_bill,unique,priority:1" json:"provider"`
	ProviderBillID string     `gorm:"type:varchar(191);not null;index:ux_payments_provider_bill,unique,priority:2" json:"provider_bill_id"`
	AmountCents    int64      `gorm:"not null" json:"amount_cents"`
	Currency       string     `gorm:"type:varchar(3);not null" json:"currency"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PayURL         string     `gorm:"type:varchar(500)" json:"pay_url"`
	ProcessedAt    *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
