package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is one sellable gift-card brand. The denominations that exist for
// a product are whatever nominals its inventory codes carry.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Slug        string    `gorm:"uniqueIndex;type:varchar(150);not null" json:"slug" validate:"required,min=2,max=150"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	SalesCount  int64     `gorm:"default:0" json:"sales_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetProductBySlug loads an active product by its slug.
func GetProductBySlug(db *gorm.DB, slug string) (*Product, error) {
	var p Product
	if err := db.Where("slug = ? AND is_active = ?", slug, true).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
