package repository

import (
	"github.com/LukasWeber/CardForge/app/models"
	"gorm.io/gorm"
)

type codeRepository struct {
	db *gorm.DB
}

// NewCodeRepository creates a new code repository instance
func NewCodeRepository(db *gorm.DB) CodeRepository {
	return &codeRepository{db: db}
}

func (r *codeRepository) CountAvailable(productID uint, nominalCents int64) (int64, error) {
	var count int64
	err := r.db.Model(&models.Code{}).
		Where("product_id = ? AND nominal_cents = ? AND status = ?", productID, nominalCents, models.CodeStatusAvailable).
		Count(&count).Error
	return count, err
}
