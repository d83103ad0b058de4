package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeber/CardForge/app/models"
	"github.com/LukasWeber/CardForge/internal/pkg/alerting"
	"github.com/LukasWeber/CardForge/internal/pkg/database"
	"github.com/LukasWeber/CardForge/internal/pkg/env"
	"github.com/LukasWeber/CardForge/internal/pkg/fulfillment"
	"github.com/LukasWeber/CardForge/internal/pkg/gateway"
	"github.com/LukasWeber/CardForge/internal/pkg/metrics/counter"
)

const paymentProvider = "paylane"

// HandlePaymentWebhook processes an asynchronous payment confirmation from
// the gateway. Every call is recorded before any side effect runs; duplicate
// deliveries for an already-processed bill short-circuit to 200 with zero
// additional side effects. Once the call is durably recorded, business
// outcomes (including manual review) still answer 200 so the gateway stops
// retrying.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("X-Gateway-Signature")
	secret := env.GetEnv("GATEWAY_WEBHOOK_SECRET", "")

	svc := fulfillment.NewServiceFromDB(database.GetDB(), alerting.Default())
	repo := svc.Repo()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	signatureValid := gateway.VerifyWebhookSignature(rawBody, signature, secret)
	ev, parseErr := gateway.ParseWebhookEvent(rawBody)

	record := &models.WebhookRecord{
		Provider:       paymentProvider,
		PayloadJSON:    string(rawBody),
		SignatureValid: signatureValid,
	}
	if ev != nil {
		record.ProviderBillID = ev.BillID
		record.DeclaredStatus = ev.Status
	}
	if err := repo.RecordWebhookCall(ctx, record); err != nil {
		// Nothing was durably recorded yet, a 500 makes the gateway retry.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}

	if !signatureValid {
		finishWebhook(ctx, repo, record.ID, fiber.StatusUnauthorized, "invalid webhook signature")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if parseErr != nil {
		finishWebhook(ctx, repo, record.ID, fiber.StatusBadRequest, parseErr.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	processed, err := repo.IsBillProcessed(ctx, paymentProvider, ev.BillID, ev.Status)
	if err != nil {
		finishWebhook(ctx, repo, record.ID, fiber.StatusInternalServerError, err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "dedup_check_failed"})
	}
	if processed {
		finishWebhook(ctx, repo, record.ID, fiber.StatusOK, "")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	payment, err := repo.GetPaymentByProviderBillID(ctx, paymentProvider, ev.BillID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			finishWebhook(ctx, repo, record.ID, fiber.StatusNotFound, "unknown bill "+ev.BillID)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "payment_not_found"})
		}
		finishWebhook(ctx, repo, record.ID, fiber.StatusInternalServerError, err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_lookup_failed"})
	}

	if !ev.IsPaid() {
		return handleNonPaidStatus(c, ctx, repo, record.ID, payment, ev)
	}

	claimed, err := repo.ClaimPayment(ctx, payment.ID)
	if err != nil {
		finishWebhook(ctx, repo, record.ID, fiber.StatusInternalServerError, err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_claim_failed"})
	}
	if !claimed {
		// Concurrent processing detected: another worker won the conditional
		// update. That is success, not an error.
		finishWebhook(ctx, repo, record.ID, fiber.StatusOK, "")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "concurrent": true})
	}

	transitioned, err := repo.UpdateOrderStatus(ctx, payment.OrderID, models.OrderStatusPending, models.OrderStatusPaid)
	if err != nil {
		finishWebhook(ctx, repo, record.ID, fiber.StatusInternalServerError, err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_transition_failed"})
	}
	if !transitioned {
		// The bill was claimed but the order is no longer pending: an earlier
		// REJECTED or EXPIRED event already closed it. Money arrived for a
		// dead order; never deliver codes for it, hand it to an operator.
		status := "unknown"
		if order, lookupErr := repo.GetOrderWithItems(ctx, payment.OrderID); lookupErr == nil {
			status = order.Status
		}
		finishWebhook(ctx, repo, record.ID, fiber.StatusOK, fmt.Sprintf("paid bill %s for %s order", ev.BillID, status))
		alerting.Default().Raise(models.NotificationTypeSystem, models.SeverityCritical,
			fmt.Sprintf("bill %s confirmed paid but order %d is %s, codes were not delivered", ev.BillID, payment.OrderID, status),
			payment.OrderID)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "order_status": status, "fulfilled": false})
	}

	order, err := repo.GetOrderWithItems(ctx, payment.OrderID)
	if err != nil {
		finishWebhook(ctx, repo, record.ID, fiber.StatusInternalServerError, err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}

	result, err := svc.Fulfill(ctx, order, ev.BillID)
	if err != nil {
		// The payment claim already happened; answer 200 and alert instead
		// of making the gateway replay a half-processed bill.
		finishWebhook(ctx, repo, record.ID, fiber.StatusOK, err.Error())
		alerting.Default().Raise(models.NotificationTypeSystem, models.SeverityCritical,
			fmt.Sprintf("fulfillment of order %s failed: %v", order.PublicID, err), order.ID)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": false, "error": "fulfillment_failed"})
	}

	// Best-effort sales counters; flushed to the products table periodically.
	for _, item := range order.Items {
		if item.AssignedCodeID != nil {
			if cerr := counter.AddProductSale(item.ProductID); cerr != nil {
				log.Debugf("[Webhook] sales counter for product %d not incremented: %v", item.ProductID, cerr)
			}
		}
	}

	finishWebhook(ctx, repo, record.ID, fiber.StatusOK, "")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":           true,
		"order_status": result.OrderStatus,
		"email_status": result.EmailStatus,
	})
}

func handleNonPaidStatus(c *fiber.Ctx, ctx context.Context, repo fulfillment.Repository, recordID uint, payment *models.Payment, ev *gateway.WebhookEvent) error {
	target := models.OrderStatusFailed
	if ev.Status == gateway.BillStatusExpired {
		target = models.OrderStatusCancelled
	}
	if _, err := repo.UpdateOrderStatus(ctx, payment.OrderID, models.OrderStatusPending, target); err != nil {
		finishWebhook(ctx, repo, recordID, fiber.StatusInternalServerError, err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_transition_failed"})
	}
	finishWebhook(ctx, repo, recordID, fiber.StatusOK, "")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "order_status": target})
}

func finishWebhook(ctx context.Context, repo fulfillment.Repository, recordID uint, responseCode int, processingError string) {
	if err := repo.MarkWebhookProcessed(ctx, recordID, responseCode, processingError); err != nil {
		alerting.Default().Raise(models.NotificationTypeSystem, models.SeverityWarning,
			fmt.Sprintf("failed to mark webhook record %d processed: %v", recordID, err), 0)
	}
}
