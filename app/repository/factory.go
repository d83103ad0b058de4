package repository

import (
	"sync"

	"gorm.io/gorm"

	"github.com/LukasWeber/CardForge/internal/pkg/database"
)

// Repositories bundles all repository instances
type Repositories struct {
	Order        OrderRepository
	Product      ProductRepository
	Code         CodeRepository
	Notification NotificationRepository
	APIClient    APIClientRepository
}

// NewRepositories creates all repositories on a shared DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:        NewOrderRepository(db),
		Product:      NewProductRepository(db),
		Code:         NewCodeRepository(db),
		Notification: NewNotificationRepository(db),
		APIClient:    NewAPIClientRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

var (
	globalFactory *Factory
	globalOnce    sync.Once
)

// GetGlobalFactory returns the process-wide factory bound to the global DB
func GetGlobalFactory() *Factory {
	globalOnce.Do(func() {
		globalFactory = NewFactory(database.GetDB())
	})
	return globalFactory
}
