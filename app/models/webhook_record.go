package models

import "time"

// WebhookRecord stores every inbound gateway callback before any business
// logic runs, so even a crash mid-processing leaves a forensic trace. The
// bill id is deliberately NOT unique here: gateway retries produce multiple
// rows for the same bill, and deduplication of side effects is decided by
// checking whether any prior row for the bill is already processed.
type WebhookRecord struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ix_webhook_records_bill,priority:1" json:"provider"`
	ProviderBillID  string     `gorm:"type:varchar(191);not null;index:ix_webhook_records_bill,priority:2" json:"provider_bill_id"`
	DeclaredStatus  string     `gorm:"type:varchar(30);not null" json:"declared_status"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null;index" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	ResponseCode    int        `gorm:"default:0" json:"response_code"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
