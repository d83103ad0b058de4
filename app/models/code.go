package models

import "time"

const (
	CodeStatusAvailable = "available"
	CodeStatusSold      = "sold"
	CodeStatusInvalid   = "invalid"
)

// Code is one redeemable gift-card code. It is the contended resource of the
// whole system: a row moves available -> sold exactly once, atomically with
// being bound to exactly one OrderItem, and is never read-modified-written.
type Code struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ProductID    uint       `gorm:"not null;index:ix_codes_pool,priority:1" json:"product_id"`
	NominalCents int64      `gorm:"not null;index:ix_codes_pool,priority:2" json:"nominal_cents"`
	Value        string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"-"`
	Status       string     `gorm:"type:varchar(10);not null;default:'available';index:ix_codes_pool,priority:3" json:"status"`
	OrderItemID  *uint      `gorm:"uniqueIndex" json:"order_item_id,omitempty"`
	SoldAt       *time.Time `gorm:"type:timestamp;default:null" json:"sold_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
