package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeber/CardForge/app/models"
	"github.com/LukasWeber/CardForge/internal/pkg/mail"
	"github.com/LukasWeber/CardForge/internal/pkg/proof"
)

// Mailer sends one email and returns the provider message reference.
type Mailer interface {
	Send(to, subject, body string) (messageID string, err error)
}

// AlertRaiser raises a fire-and-forget operator alert.
type AlertRaiser interface {
	Raise(alertType, severity, message string, referenceID uint)
}

type smtpMailer struct{}

func (smtpMailer) Send(to, subject, body string) (string, error) {
	return mail.SendMail(to, subject, body)
}

// Service sequences allocation, email dispatch and proof logging for one
// paid order. It is invoked once per confirmed payment, protected by the
// webhook ledger and the payment claim upstream.
type Service struct {
	repo    Repository
	mailer  Mailer
	alerter AlertRaiser
}

// NewService creates a fulfillment service from injected collaborators.
func NewService(repo Repository, mailer Mailer, alerter AlertRaiser) *Service {
	if mailer == nil {
		mailer = smtpMailer{}
	}
	return &Service{repo: repo, mailer: mailer, alerter: alerter}
}

// NewServiceFromDB creates a fulfillment service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, alerter AlertRaiser) *Service {
	return NewService(NewRepository(db), nil, alerter)
}

// Repo exposes the repository for the webhook pipeline.
func (s *Service) Repo() Repository {
	return s.repo
}

// Fulfill runs the post-payment pipeline for one paid order. Allocation is
// attempted for every item before any decision is taken: either the customer
// receives all purchased codes or none. Codes claimed for a partially
// covered order stay sold; "sold" is terminal and releasing a code that may
// already have been seen by an operator is unsafe. Resolution is manual.
func (s *Service) Fulfill(ctx context.Context, order *models.Order, transactionID string) (*FulfillmentResult, error) {
	if order == nil || len(order.Items) == 0 {
		return nil, errors.New("order with items is required")
	}
	// A cancelled or failed order can still receive a late PAID webhook
	// (the payment claim guards the bill, not the order). Codes are never
	// delivered for an order that is not paid.
	if order.Status != models.OrderStatusPaid {
		return nil, fmt.Errorf("order %s is %s, fulfillment requires a paid order", order.PublicID, order.Status)
	}

	allocations := make([]ItemAllocation, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		code, err := s.repo.AllocateCode(ctx, item)
		if err != nil {
			if errors.Is(err, ErrNoCodeAvailable) {
				allocations = append(allocations, ItemAllocation{Item: *item})
				continue
			}
			return nil, fmt.Errorf("allocate code for item %d: %w", item.ID, err)
		}
		allocations = append(allocations, ItemAllocation{Item: *item, Code: code})
	}

	result := &FulfillmentResult{OrderStatus: order.Status, EmailStatus: order.EmailStatus}
	for _, a := range allocations {
		if a.Allocated() {
			result.Allocated++
		} else {
			result.Unavailable++
		}
	}

	if result.Unavailable > 0 {
		if _, err := s.repo.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPaid, models.OrderStatusManualReview); err != nil {
			return nil, err
		}
		result.OrderStatus = models.OrderStatusManualReview
		s.alerter.Raise(
			models.NotificationTypeOutOfStock,
			models.SeverityCritical,
			fmt.Sprintf("no code available for %d of %d item(s) of paid order %s", result.Unavailable, len(allocations), order.PublicID),
			order.ID,
		)
		log.Warnf("[Fulfillment] order %s moved to manual review: %d item(s) without inventory", order.PublicID, result.Unavailable)
		return result, nil
	}

	return s.deliver(ctx, order, allocations, transactionID, result)
}

// Redeliver re-sends the already-bound codes of an order without allocating.
// It is the explicit recovery path for orders stuck with email_status=failed:
// inventory was consumed, so retried delivery must reuse the same codes.
func (s *Service) Redeliver(ctx context.Context, orderPublicID, transactionID string) (*FulfillmentResult, error) {
	order, err := s.repo.GetOrderByPublicID(ctx, orderPublicID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPaid {
		return nil, fmt.Errorf("order %s is %s, redelivery requires a paid order", orderPublicID, order.Status)
	}

	allocations := make([]ItemAllocation, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		if item.AssignedCodeID == nil {
			return nil, fmt.Errorf("item %d of order %s has no bound code, nothing to redeliver", item.ID, orderPublicID)
		}
		code, err := s.repo.AllocateCode(ctx, item) // bound item: returns the existing code
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, ItemAllocation{Item: *item, Code: code})
	}

	result := &FulfillmentResult{
		OrderStatus: order.Status,
		EmailStatus: order.EmailStatus,
		Allocated:   len(allocations),
	}
	return s.deliver(ctx, order, allocations, transactionID, result)
}

func (s *Service) deliver(ctx context.Context, order *models.Order, allocations []ItemAllocation, transactionID string, result *FulfillmentResult) (*FulfillmentResult, error) {
	subject, body := ComposeConfirmationEmail(order, allocations)
	messageID, err := s.mailer.Send(order.CustomerEmail, subject, body)
	if err != nil {
		if setErr := s.repo.SetEmailStatus(ctx, order.ID, models.EmailStatusFailed); setErr != nil {
			log.Errorf("[Fulfillment] failed to flag email failure for order %s: %v", order.PublicID, setErr)
		}
		result.EmailStatus = models.EmailStatusFailed
		s.alerter.Raise(
			models.NotificationTypeDeliveryFailed,
			models.SeverityCritical,
			fmt.Sprintf("email delivery failed for paid order %s: %v", order.PublicID, err),
			order.ID,
		)
		// Inventory stays claimed: the codes are consumed and must be
		// re-sent, never re-allocated.
		return result, nil
	}

	giftMessageID := ""
	if order.HasGiftRecipient() {
		giftSubject, giftBody := ComposeGiftEmail(order, allocations)
		giftMessageID, err = s.mailer.Send(order.GiftEmail, giftSubject, giftBody)
		if err != nil {
			log.Errorf("[Fulfillment] gift email for order %s failed: %v", order.PublicID, err)
			s.alerter.Raise(
				models.NotificationTypeDeliveryFailed,
				models.SeverityWarning,
				fmt.Sprintf("gift email failed for order %s, payer copy was delivered: %v", order.PublicID, err),
				order.ID,
			)
		}
	}

	if err := s.repo.SetEmailStatus(ctx, order.ID, models.EmailStatusSent); err != nil {
		return nil, err
	}
	result.EmailStatus = models.EmailStatusSent

	now := time.Now()
	for _, a := range allocations {
		entry := &models.DeliveryProof{
			OrderID:        order.ID,
			OrderItemID:    a.Item.ID,
			TransactionID:  transactionID,
			RecipientEmail: order.CustomerEmail,
			RecipientIP:    order.ClientIP,
			CodeHash:       proof.HashCode(a.Code.Value),
			MessageID:      messageID,
			DeliveredAt:    now,
		}
		if err := s.repo.CreateDeliveryProof(ctx, entry); err != nil {
			log.Errorf("[Fulfillment] failed to write delivery proof for item %d: %v", a.Item.ID, err)
			continue
		}
		result.ProofCount++

		if giftMessageID != "" {
			giftEntry := &models.DeliveryProof{
				OrderID:        order.ID,
				OrderItemID:    a.Item.ID,
				TransactionID:  transactionID,
				RecipientEmail: order.GiftEmail,
				RecipientIP:    order.ClientIP,
				CodeHash:       proof.HashCode(a.Code.Value),
				MessageID:      giftMessageID,
				DeliveredAt:    now,
			}
			if err := s.repo.CreateDeliveryProof(ctx, giftEntry); err != nil {
				log.Errorf("[Fulfillment] failed to write gift delivery proof for item %d: %v", a.Item.ID, err)
				continue
			}
			result.ProofCount++
		}
	}

	log.Infof("[Fulfillment] order %s delivered: %d code(s), %d proof(s)", order.PublicID, len(allocations), result.ProofCount)
	return result, nil
}

// VerifyDeliveredCode recomputes the hash of a candidate code and compares
// it against the proofs recorded for a transaction.
func (s *Service) VerifyDeliveredCode(ctx context.Context, transactionID, candidate string) (bool, error) {
	proofs, err := s.repo.FindProofsByTransactionID(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if len(proofs) == 0 {
		return false, gorm.ErrRecordNotFound
	}
	for _, p := range proofs {
		if proof.Matches(candidate, p.CodeHash) {
			return true, nil
		}
	}
	return false, nil
}
