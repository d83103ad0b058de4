package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	NotificationTypeOutOfStock     = "out_of_stock"
	NotificationTypeDeliveryFailed = "delivery_failed"
	NotificationTypeSystem         = "system"

	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SystemNotification is an operator alert raised by the fulfillment pipeline,
// e.g. "no code available for paid order X". It is consumed and resolved by a
// human, never by the automated path.
type SystemNotification struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Type        string     `gorm:"type:varchar(50);not null;index" json:"type" validate:"oneof=out_of_stock delivery_failed system"`
	Severity    string     `gorm:"type:varchar(10);not null;index" json:"severity" validate:"oneof=info warning critical"`
	Message     string     `gorm:"type:text;not null" json:"message"`
	ReferenceID uint       `gorm:"index" json:"reference_id"` // order the alert relates to
	Resolved    bool       `gorm:"default:false;index" json:"resolved"`
	ResolvedAt  *time.Time `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreateSystemNotification persists a new operator alert.
func CreateSystemNotification(db *gorm.DB, notificationType, severity, message string, referenceID uint) error {
	notification := SystemNotification{
		Type:        notificationType,
		Severity:    severity,
		Message:     message,
		ReferenceID: referenceID,
	}

	return db.Create(&notification).Error
}
