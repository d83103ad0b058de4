package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/LukasWeber/CardForge/internal/pkg/alerting"
	"github.com/LukasWeber/CardForge/internal/pkg/database"
	"github.com/LukasWeber/CardForge/internal/pkg/fulfillment"
)

// VerifyProofRequest carries a disputed code for verification.
type VerifyProofRequest struct {
	TransactionID string `json:"transaction_id"`
	Code          string `json:"code"`
}

// HandleVerifyProof recomputes the hash of a candidate code and compares it
// against the delivery-proof ledger for the given transaction. Used during
// chargeback disputes; the plaintext is never stored, only compared.
func HandleVerifyProof(c *fiber.Ctx) error {
	var req VerifyProofRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	if req.TransactionID == "" || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "transaction_id_and_code_required"})
	}

	svc := fulfillment.NewServiceFromDB(database.GetDB(), alerting.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	match, err := svc.VerifyDeliveredCode(ctx, req.TransactionID, req.Code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_proofs_for_transaction"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "verification_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"transaction_id": req.TransactionID,
		"match":          match,
	})
}
