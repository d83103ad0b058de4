package repository

import (
	"time"

	"github.com/LukasWeber/CardForge/app/models"
	"gorm.io/gorm"
)

type apiClientRepository struct {
	db *gorm.DB
}

// NewAPIClientRepository creates a new API client repository instance
func NewAPIClientRepository(db *gorm.DB) APIClientRepository {
	return &apiClientRepository{db: db}
}

func (r *apiClientRepository) GetByKeyHash(hash string) (*models.APIClient, error) {
	var client models.APIClient
	err := r.db.Where("key_hash = ? AND is_active = ?", hash, true).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *apiClientRepository) TouchLastUsed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.APIClient{}).Where("id = ?", id).Update("last_used_at", now).Error
}
