package fulfillment

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/LukasWeber/CardForge/app/models"
)

// ErrNoCodeAvailable is returned when the inventory holds no available code
// for a requested (product, nominal) pool.
var ErrNoCodeAvailable = errors.New("no code available")

// Repository provides the DB operations used by the fulfillment service and
// the webhook pipeline. The two conditional updates (ClaimPayment and the
// code claim inside AllocateCode) are the only atomicity points the whole
// system relies on; everything else tolerates duplication.
type Repository interface {
	RecordWebhookCall(ctx context.Context, record *models.WebhookRecord) error
	IsBillProcessed(ctx context.Context, provider, providerBillID, declaredStatus string) (bool, error)
	MarkWebhookProcessed(ctx context.Context, id uint, responseCode int, processingError string) error

	GetPaymentByProviderBillID(ctx context.Context, provider, providerBillID string) (*models.Payment, error)
	ClaimPayment(ctx context.Context, paymentID uint) (bool, error)

	GetOrderWithItems(ctx context.Context, orderID uint) (*models.Order, error)
	GetOrderByPublicID(ctx context.Context, publicID string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint, from, to string) (bool, error)
	SetEmailStatus(ctx context.Context, orderID uint, status string) error

	AllocateCode(ctx context.Context, item *models.OrderItem) (*models.Code, error)
	CountAvailableCodes(ctx context.Context, productID uint, nominalCents int64) (int64, error)

	CreateDeliveryProof(ctx context.Context, p *models.DeliveryProof) error
	FindProofsByTransactionID(ctx context.Context, transactionID string) ([]models.DeliveryProof, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a fulfillment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// RecordWebhookCall persists an inbound webhook unconditionally, before any
// business logic runs. Retries create additional rows on purpose.
func (r *gormRepository) RecordWebhookCall(ctx context.Context, record *models.WebhookRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// IsBillProcessed reports whether an earlier record for the same bill and
// declared status was already processed cleanly. Records that ended in an
// error do not count; a later valid delivery may still be processed.
func (r *gormRepository) IsBillProcessed(ctx context.Context, provider, providerBillID, declaredStatus string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookRecord{}).
		Where("provider = ? AND provider_bill_id = ? AND declared_status = ? AND processed_at IS NOT NULL AND processing_error = ''",
			provider, providerBillID, declaredStatus).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, responseCode int, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
		"response_code":    responseCode,
	}
	return r.db.WithContext(ctx).Model(&models.WebhookRecord{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) GetPaymentByProviderBillID(ctx context.Context, provider, providerBillID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("provider = ? AND provider_bill_id = ?", provider, providerBillID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ClaimPayment flips the payment to paid with a single conditional update on
// "processed_at IS NULL". Zero affected rows means a concurrent worker
// already claimed this bill; the caller treats that as success.
func (r *gormRepository) ClaimPayment(ctx context.Context, paymentID uint) (bool, error) {
	now := time.Now()
	tx := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND processed_at IS NULL", paymentID).
		Updates(map[string]interface{}{
			"status":       models.PaymentStatusPaid,
			"processed_at": &now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetOrderWithItems(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) GetOrderByPublicID(ctx context.Context, publicID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("public_id = ?", publicID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus applies a guarded transition. The WHERE clause keeps the
// lifecycle monotonic even when two workers race; callers must treat zero
// affected rows as "the order is not in the expected state".
func (r *gormRepository) UpdateOrderStatus(ctx context.Context, orderID uint, from, to string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) SetEmailStatus(ctx context.Context, orderID uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Update("email_status", status).Error
}

// AllocateCode binds one available code to the order item. If the item was
// already bound (a retried webhook, or redelivery), the existing code is
// returned and no new claim happens. Otherwise the claim is one conditional
// UPDATE ... LIMIT 1 on "status = available"; a read-then-write pair would
// leave a race window in which two fulfillments see the same code.
func (r *gormRepository) AllocateCode(ctx context.Context, item *models.OrderItem) (*models.Code, error) {
	var existing models.Code
	err := r.db.WithContext(ctx).Where("order_item_id = ?", item.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	tx := r.db.WithContext(ctx).Model(&models.Code{}).
		Where("product_id = ? AND nominal_cents = ? AND status = ?", item.ProductID, item.NominalCents, models.CodeStatusAvailable).
		Limit(1).
		Updates(map[string]interface{}{
			"status":        models.CodeStatusSold,
			"order_item_id": item.ID,
			"sold_at":       &now,
		})
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNoCodeAvailable
	}

	var code models.Code
	if err := r.db.WithContext(ctx).Where("order_item_id = ?", item.ID).First(&code).Error; err != nil {
		return nil, err
	}

	// Back-reference on the item is informational; the binding itself is the
	// unique order_item_id on the code row.
	if err := r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("id = ?", item.ID).Update("assigned_code_id", code.ID).Error; err != nil {
		return nil, err
	}
	item.AssignedCodeID = &code.ID
	return &code, nil
}

func (r *gormRepository) CountAvailableCodes(ctx context.Context, productID uint, nominalCents int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Code{}).
		Where("product_id = ? AND nominal_cents = ? AND status = ?", productID, nominalCents, models.CodeStatusAvailable).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) CreateDeliveryProof(ctx context.Context, p *models.DeliveryProof) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *gormRepository) FindProofsByTransactionID(ctx context.Context, transactionID string) ([]models.DeliveryProof, error) {
	var proofs []models.DeliveryProof
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Find(&proofs).Error
	return proofs, err
}
