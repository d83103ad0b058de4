package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/LukasWeber/CardForge/app/repository"
	"github.com/LukasWeber/CardForge/internal/pkg/alerting"
	"github.com/LukasWeber/CardForge/internal/pkg/database"
	"github.com/LukasWeber/CardForge/internal/pkg/fulfillment"
)

// HandleListNotifications returns unresolved operator alerts, newest first.
func HandleListNotifications(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	notifications, err := repos.Notification.ListUnresolved(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "notification_list_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"notifications": notifications})
}

// HandleListOrders returns a paginated order overview for operator triage,
// newest first. Codes never appear here.
func HandleListOrders(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	orders, err := repos.Order.List(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_list_failed"})
	}
	total, err := repos.Order.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_count_failed"})
	}

	summaries := make([]fiber.Map, 0, len(orders))
	for _, o := range orders {
		summaries = append(summaries, fiber.Map{
			"order_id":     o.PublicID,
			"status":       o.Status,
			"email_status": o.EmailStatus,
			"total_cents":  o.TotalCents,
			"currency":     o.Currency,
			"items":        len(o.Items),
			"created_at":   o.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"orders": summaries, "total": total})
}

// HandleResolveNotification marks one alert as handled.
func HandleResolveNotification(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_notification_id"})
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	if _, err := repos.Notification.GetByID(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "notification_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "notification_lookup_failed"})
	}
	if err := repos.Notification.Resolve(uint(id)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "notification_resolve_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleRedeliverOrder re-sends the codes already bound to a paid order.
// This is the recovery path for email_status=failed: inventory was consumed
// at fulfillment time, so redelivery reuses the bound codes and never
// allocates new ones.
func HandleRedeliverOrder(c *fiber.Ctx) error {
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

	payment, err := repos.Order.GetPaymentByOrderID(order.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_lookup_failed"})
	}

	svc := fulfillment.NewServiceFromDB(database.GetDB(), alerting.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := svc.Redeliver(ctx, publicID, payment.ProviderBillID)
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "redelivery_failed", "message": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":           true,
		"order_status": result.OrderStatus,
		"email_status": result.EmailStatus,
		"proofs":       result.ProofCount,
	})
}
