package repository

import (
	"github.com/LukasWeber/CardForge/app/models"
	"gorm.io/gorm"
)

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetBySlug(slug string) (*models.Product, error) {
	return models.GetProductBySlug(r.db, slug)
}

func (r *productRepository) ListActive() ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("is_active = ?", true).Order("name ASC").Find(&products).Error
	return products, err
}
