package models

import "time"

// DeliveryProof is one append-only entry per code actually emailed. Only the
// SHA-256 hash of the code is retained, never the plaintext, so the proof
// table does not become a second place where the secret lives. Rows are
// never updated or deleted; the repository exposes no mutation for them.
type DeliveryProof struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderID        uint      `gorm:"not null;index" json:"order_id"`
	OrderItemID    uint      `gorm:"not null;index" json:"order_item_id"`
	TransactionID  string    `gorm:"type:varchar(191);not null;index" json:"transaction_id"`
	RecipientEmail string    `gorm:"type:varchar(200);not null" json:"recipient_email"`
	RecipientIP    string    `gorm:"type:varchar(45)" json:"recipient_ip"`
	CodeHash       string    `gorm:"type:char(64);not null;index" json:"code_hash"`
	MessageID      string    `gorm:"type:varchar(255)" json:"message_id"`
	DeliveredAt    time.Time `gorm:"not null" json:"delivered_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
