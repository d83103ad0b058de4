package repository

import (
	"github.com/LukasWeber/CardForge/app/models"
)

// OrderRepository defines the interface for order-related database operations
type OrderRepository interface {
	CreateWithPayment(order *models.Order, payment *models.Payment) error
	GetByPublicID(publicID string) (*models.Order, error)
	GetPaymentByOrderID(orderID uint) (*models.Payment, error)
	SetPayURL(paymentID uint, payURL string) error
	List(offset, limit int) ([]models.Order, error)
	Count() (int64, error)
}

// ProductRepository defines the interface for product lookups
type ProductRepository interface {
	GetBySlug(slug string) (*models.Product, error)
	ListActive() ([]models.Product, error)
}

// CodeRepository defines the interface for inventory-level reads. The
// contended claim itself lives in the fulfillment repository; this one only
// serves advisory stock checks and operator views.
type CodeRepository interface {
	CountAvailable(productID uint, nominalCents int64) (int64, error)
}

// NotificationRepository defines the interface for operator alerts
type NotificationRepository interface {
	ListUnresolved(offset, limit int) ([]models.SystemNotification, error)
	GetByID(id uint) (*models.SystemNotification, error)
	Resolve(id uint) error
}

// APIClientRepository defines the interface for operator API credentials
type APIClientRepository interface {
	GetByKeyHash(hash string) (*models.APIClient, error)
	TouchLastUsed(id uint) error
}
