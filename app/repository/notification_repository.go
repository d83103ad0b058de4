package repository

import (
	"time"

	"github.com/LukasWeber/CardForge/app/models"
	"gorm.io/gorm"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository instance
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) ListUnresolved(offset, limit int) ([]models.SystemNotification, error) {
	var notifications []models.SystemNotification
	err := r.db.Where("resolved = ?", false).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) GetByID(id uint) (*models.SystemNotification, error) {
	var n models.SystemNotification
	if err := r.db.First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) Resolve(id uint) error {
	now := time.Now()
	return r.db.Model(&models.SystemNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": &now}).Error
}
