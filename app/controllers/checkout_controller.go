package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LukasWeber/CardForge/app/models"
	"github.com/LukasWeber/CardForge/app/repository"
	"github.com/LukasWeber/CardForge/internal/pkg/cache"
	"github.com/LukasWeber/CardForge/internal/pkg/gateway"
)

const stockCacheTTL = 30 * time.Second

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	CustomerEmail string            `json:"customer_email" validate:"required,email,max=200"`
	GiftEmail     string            `json:"gift_email" validate:"omitempty,email,max=200"`
	GiftMessage   string            `json:"gift_message" validate:"max=2000"`
	Currency      string            `json:"currency" validate:"required,len=3"`
	Items         []CreateOrderItem `json:"items" validate:"required,min=1,max=20,dive"`
}

// CreateOrderItem is one requested denomination.
type CreateOrderItem struct {
	ProductSlug  string `json:"product_slug" validate:"required"`
	NominalCents int64  `json:"nominal_cents" validate:"gt=0"`
	Quantity     int    `json:"quantity" validate:"gte=1,lte=10"`
}

// HandleCreateOrder creates a pending order plus its payment bill and
// returns the gateway redirect URL. The stock check here is advisory only;
// allocation happens at payment confirmation, so momentary stock can still
// run out between checkout and webhook.
func HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validator.New().Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	repos := repository.GetGlobalFactory().GetRepositories()

	// Resolve products and aggregate requested quantities per code pool.
	type poolKey struct {
		productID uint
		nominal   int64
	}
	requested := make(map[poolKey]int64)
	var items []models.OrderItem
	var totalCents int64

	for _, in := range req.Items {
		product, err := repos.Product.GetBySlug(strings.TrimSpace(in.ProductSlug))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_product", "product": in.ProductSlug})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "product_lookup_failed"})
		}

		key := poolKey{productID: product.ID, nominal: in.NominalCents}
		requested[key] += int64(in.Quantity)
		for i := 0; i < in.Quantity; i++ {
			items = append(items, models.OrderItem{
				ProductID:    product.ID,
				NominalCents: in.NominalCents,
				PriceCents:   in.NominalCents,
			})
			totalCents += in.NominalCents
		}
	}

	for key, want := range requested {
		available, err := availableStock(repos.Code, key.productID, key.nominal)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stock_check_failed"})
		}
		if available < want {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":      "insufficient_stock",
				"product_id": key.productID,
				"nominal":    key.nominal,
			})
		}
	}

	order := models.NewOrder(
		strings.TrimSpace(req.CustomerEmail),
		strings.TrimSpace(req.GiftEmail),
		strings.TrimSpace(req.GiftMessage),
		clientIP(c),
		strings.ToUpper(strings.TrimSpace(req.Currency)),
	)
	order.Items = items
	order.TotalCents = totalCents

	payment := &models.Payment{
		Provider:       paymentProvider,
		ProviderBillID: uuid.New().String(),
		AmountCents:    totalCents,
		Currency:       order.Currency,
		Status:         models.PaymentStatusPending,
	}
	if err := repos.Order.CreateWithPayment(order, payment); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_create_failed"})
	}

	client := gateway.NewClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	payURL, err := client.CreateBill(ctx, payment.ProviderBillID, totalCents, order.Currency,
		fmt.Sprintf("Gift codes, order %s", order.PublicID))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway_unavailable"})
	}
	if err := repos.Order.SetPayURL(payment.ID, payURL); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_update_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id":    order.PublicID,
		"total_cents": totalCents,
		"currency":    order.Currency,
		"pay_url":     payURL,
	})
}

// HandleGetOrder returns the customer-visible state of an order. Codes are
// never exposed here; they only ever travel by email.
func HandleGetOrder(c *fiber.Ctx) error {
	publicID := strings.TrimSpace(c.Params("id"))
	if publicID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "order_id_missing"})
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	order, err := repos.Order.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"order_id":     order.PublicID,
		"status":       order.Status,
		"email_status": order.EmailStatus,
		"total_cents":  order.TotalCents,
		"currency":     order.Currency,
		"items":        len(order.Items),
	})
}

// availableStock reads the advisory stock counter from the cache and falls
// back to the database on a miss. The conditional code claim at fulfillment
// time stays the authoritative inventory gate.
func availableStock(codes repository.CodeRepository, productID uint, nominalCents int64) (int64, error) {
	key := fmt.Sprintf("stock:%d:%d", productID, nominalCents)
	if cached, err := cache.GetInt(key); err == nil {
		return int64(cached), nil
	}

	count, err := codes.CountAvailable(productID, nominalCents)
	if err != nil {
		return 0, err
	}
	if err := cache.Set(key, count, stockCacheTTL); err != nil {
		// Cache being down never blocks checkout.
		log.Warnf("[Checkout] failed to cache stock counter %s: %v", key, err)
	}
	return count, nil
}
