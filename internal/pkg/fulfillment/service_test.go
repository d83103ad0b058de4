package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/LukasWeber/CardForge/app/models"
	"github.com/LukasWeber/CardForge/internal/pkg/proof"
)

type fakeRepo struct {
	mu     sync.Mutex
	nextID uint

	codes       []*models.Code
	orders      map[uint]*models.Order
	payments    map[uint]*models.Payment
	records     map[uint]*models.WebhookRecord
	emailStatus map[uint]string
	proofs      []models.DeliveryProof
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nextID:      1000,
		orders:      make(map[uint]*models.Order),
		payments:    make(map[uint]*models.Payment),
		records:     make(map[uint]*models.WebhookRecord),
		emailStatus: make(map[uint]string),
	}
}

func (f *fakeRepo) addCode(productID uint, nominalCents int64, value string) *models.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &models.Code{ID: f.nextID, ProductID: productID, NominalCents: nominalCents, Value: value, Status: models.CodeStatusAvailable}
	f.codes = append(f.codes, c)
	return c
}

func (f *fakeRepo) addOrder(o *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
}

func (f *fakeRepo) addPayment(p *models.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = p
}

func (f *fakeRepo) soldCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.codes {
		if c.Status == models.CodeStatusSold {
			n++
		}
	}
	return n
}

func (f *fakeRepo) RecordWebhookCall(ctx context.Context, record *models.WebhookRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	record.ID = f.nextID
	f.records[record.ID] = record
	return nil
}

func (f *fakeRepo) IsBillProcessed(ctx context.Context, provider, providerBillID, declaredStatus string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Provider == provider && r.ProviderBillID == providerBillID &&
			r.DeclaredStatus == declaredStatus && r.ProcessedAt != nil && r.ProcessingError == "" {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) MarkWebhookProcessed(ctx context.Context, id uint, responseCode int, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	r.ProcessedAt = &now
	r.ProcessingError = processingError
	r.ResponseCode = responseCode
	return nil
}

func (f *fakeRepo) GetPaymentByProviderBillID(ctx context.Context, provider, providerBillID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.Provider == provider && p.ProviderBillID == providerBillID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ClaimPayment(ctx context.Context, paymentID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok || p.ProcessedAt != nil {
		return false, nil
	}
	now := time.Now()
	p.ProcessedAt = &now
	p.Status = models.PaymentStatusPaid
	return true, nil
}

func (f *fakeRepo) GetOrderWithItems(ctx context.Context, orderID uint) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[orderID]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetOrderByPublicID(ctx context.Context, publicID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.PublicID == publicID {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpdateOrderStatus(ctx context.Context, orderID uint, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (f *fakeRepo) SetEmailStatus(ctx context.Context, orderID uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emailStatus[orderID] = status
	if o, ok := f.orders[orderID]; ok {
		o.EmailStatus = status
	}
	return nil
}

func (f *fakeRepo) AllocateCode(ctx context.Context, item *models.OrderItem) (*models.Code, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.codes {
		if c.OrderItemID != nil && *c.OrderItemID == item.ID {
			return c, nil
		}
	}
	for _, c := range f.codes {
		if c.ProductID == item.ProductID && c.NominalCents == item.NominalCents && c.Status == models.CodeStatusAvailable {
			itemID := item.ID
			c.Status = models.CodeStatusSold
			c.OrderItemID = &itemID
			item.AssignedCodeID = &c.ID
			return c, nil
		}
	}
	return nil, ErrNoCodeAvailable
}

func (f *fakeRepo) CountAvailableCodes(ctx context.Context, productID uint, nominalCents int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.codes {
		if c.ProductID == productID && c.NominalCents == nominalCents && c.Status == models.CodeStatusAvailable {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateDeliveryProof(ctx context.Context, p *models.DeliveryProof) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.proofs = append(f.proofs, *p)
	return nil
}

func (f *fakeRepo) FindProofsByTransactionID(ctx context.Context, transactionID string) ([]models.DeliveryProof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DeliveryProof
	for _, p := range f.proofs {
		if p.TransactionID == transactionID {
			out = append(out, p)
		}
	}
	return out, nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	fail  bool
	count int
}

func (m *fakeMailer) Send(to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	if m.fail {
		return "", errors.New("smtp: connection refused")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return fmt.Sprintf("<msg-%d@test>", m.count), nil
}

type raisedAlert struct {
	alertType   string
	severity    string
	message     string
	referenceID uint
}

type fakeAlerter struct {
	mu     sync.Mutex
	raised []raisedAlert
}

func (a *fakeAlerter) Raise(alertType, severity, message string, referenceID uint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raised = append(a.raised, raisedAlert{alertType: alertType, severity: severity, message: message, referenceID: referenceID})
}

func paidOrder(id uint, itemCount int, productID uint, nominal int64) *models.Order {
	o := &models.Order{
		ID:            id,
		PublicID:      fmt.Sprintf("order-%d", id),
		CustomerEmail: "buyer@example.com",
		ClientIP:      "203.0.113.7",
		Currency:      "EUR",
		Status:        models.OrderStatusPaid,
		EmailStatus:   models.EmailStatusNone,
	}
	for i := 0; i < itemCount; i++ {
		o.Items = append(o.Items, models.OrderItem{
			ID:           id*100 + uint(i),
			OrderID:      id,
			ProductID:    productID,
			NominalCents: nominal,
			PriceCents:   nominal,
		})
	}
	return o
}

func TestFulfill_AllItemsAllocated(t *testing.T) {
	repo := newFakeRepo()
	repo.addCode(1, 2500, "CODE-AAAA")
	repo.addCode(1, 2500, "CODE-BBBB")
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	svc := NewService(repo, mailer, alerter)

	order := paidOrder(1, 2, 1, 2500)
	repo.addOrder(order)

	result, err := svc.Fulfill(context.Background(), order, "tx-1")
	if err != nil {
		t.Fatalf("unexpected fulfill error: %v", err)
	}
	if result.Allocated != 2 || result.Unavailable != 0 {
		t.Fatalf("expected 2 allocated / 0 unavailable, got %d/%d", result.Allocated, result.Unavailable)
	}
	if result.EmailStatus != models.EmailStatusSent {
		t.Fatalf("expected email status sent, got %q", result.EmailStatus)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected exactly one email, got %d", len(mailer.sent))
	}
	if mailer.sent[0].to != "buyer@example.com" {
		t.Fatalf("email went to %q", mailer.sent[0].to)
	}
	if result.ProofCount != 2 || len(repo.proofs) != 2 {
		t.Fatalf("expected 2 delivery proofs, got %d", len(repo.proofs))
	}
	if repo.soldCount() != 2 {
		t.Fatalf("expected 2 codes sold, got %d", repo.soldCount())
	}
	if len(alerter.raised) != 0 {
		t.Fatalf("expected no alerts, got %d", len(alerter.raised))
	}
}

func TestFulfill_RefusesOrdersThatAreNotPaid(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{"pending order", models.OrderStatusPending},
		{"cancelled order", models.OrderStatusCancelled},
		{"failed order", models.OrderStatusFailed},
		{"manual review order", models.OrderStatusManualReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.addCode(1, 2500, "CODE-DEAD")
			mailer := &fakeMailer{}
			alerter := &fakeAlerter{}
			svc := NewService(repo, mailer, alerter)

			order := paidOrder(20, 1, 1, 2500)
			order.Status = tt.status
			repo.addOrder(order)

			if _, err := svc.Fulfill(context.Background(), order, "tx-dead"); err == nil {
				t.Fatalf("expected fulfillment of a %s order to be refused", tt.status)
			}
			if repo.soldCount() != 0 {
				t.Fatalf("a %s order claimed inventory: %d sold", tt.status, repo.soldCount())
			}
			if len(mailer.sent) != 0 {
				t.Fatalf("a %s order got an email", tt.status)
			}
			if len(repo.proofs) != 0 {
				t.Fatalf("a %s order got delivery proofs", tt.status)
			}
		})
	}
}

func TestPaidWebhookReplayDeliversOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.addCode(1, 2500, "CODE-ONCE")
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	svc := NewService(repo, mailer, alerter)

	order := paidOrder(30, 1, 1, 2500)
	order.Status = models.OrderStatusPending
	repo.addOrder(order)
	payment := &models.Payment{ID: 900, OrderID: order.ID, Provider: "paylane", ProviderBillID: "bill-30", Status: models.PaymentStatusPending}
	repo.addPayment(payment)

	// One delivery attempt of the PAID event, the way the webhook pipeline
	// runs it: ledger entry, dedup check, payment claim, transition, fulfill.
	// markProcessed=false models a crash before the ledger was finalized.
	ctx := context.Background()
	deliver := func(markProcessed bool) {
		record := &models.WebhookRecord{Provider: "paylane", ProviderBillID: "bill-30", DeclaredStatus: "PAID", SignatureValid: true}
		if err := repo.RecordWebhookCall(ctx, record); err != nil {
			t.Fatalf("unexpected record error: %v", err)
		}
		processed, err := repo.IsBillProcessed(ctx, "paylane", "bill-30", "PAID")
		if err != nil {
			t.Fatalf("unexpected dedup error: %v", err)
		}
		if processed {
			return
		}
		claimed, err := repo.ClaimPayment(ctx, payment.ID)
		if err != nil {
			t.Fatalf("unexpected claim error: %v", err)
		}
		if !claimed {
			return
		}
		if _, err := repo.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusPaid); err != nil {
			t.Fatalf("unexpected transition error: %v", err)
		}
		o, err := repo.GetOrderWithItems(ctx, order.ID)
		if err != nil {
			t.Fatalf("unexpected order lookup error: %v", err)
		}
		if _, err := svc.Fulfill(ctx, o, "bill-30"); err != nil {
			t.Fatalf("unexpected fulfill error: %v", err)
		}
		if markProcessed {
			if err := repo.MarkWebhookProcessed(ctx, record.ID, 200, ""); err != nil {
				t.Fatalf("unexpected mark error: %v", err)
			}
		}
	}

	// First delivery fulfills but crashes before the ledger is finalized;
	// the replay passes the dedup check and is stopped by the payment claim.
	deliver(false)
	deliver(true)
	// Third delivery is short-circuited by the ledger alone.
	deliver(true)

	if repo.soldCount() != 1 {
		t.Fatalf("replayed confirmation claimed inventory again: %d sold", repo.soldCount())
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected exactly one email across replays, got %d", len(mailer.sent))
	}
	if len(repo.proofs) != 1 {
		t.Fatalf("expected exactly one delivery proof across replays, got %d", len(repo.proofs))
	}
}

func TestFulfill_PartialInventoryGoesToManualReview(t *testing.T) {
	repo := newFakeRepo()
	repo.addCode(1, 2500, "CODE-AAAA")
	repo.addCode(1, 2500, "CODE-BBBB")
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	svc := NewService(repo, mailer, alerter)

	// 3 items, only 2 codes available.
	order := paidOrder(2, 3, 1, 2500)
	repo.addOrder(order)

	result, err := svc.Fulfill(context.Background(), order, "tx-2")
	if err != nil {
		t.Fatalf("unexpected fulfill error: %v", err)
	}
	if result.OrderStatus != models.OrderStatusManualReview {
		t.Fatalf("expected manual_review, got %q", result.OrderStatus)
	}
	if result.Allocated != 2 || result.Unavailable != 1 {
		t.Fatalf("expected 2 allocated / 1 unavailable, got %d/%d", result.Allocated, result.Unavailable)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected zero emails for a partially covered order, got %d", len(mailer.sent))
	}
	// Claimed codes are not rolled back.
	if repo.soldCount() != 2 {
		t.Fatalf("expected the 2 claimed codes to stay sold, got %d", repo.soldCount())
	}
	if len(repo.proofs) != 0 {
		t.Fatalf("expected no proofs without delivery, got %d", len(repo.proofs))
	}
	if len(alerter.raised) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerter.raised))
	}
	if alerter.raised[0].severity != models.SeverityCritical || alerter.raised[0].alertType != models.NotificationTypeOutOfStock {
		t.Fatalf("expected critical out_of_stock alert, got %+v", alerter.raised[0])
	}
}

func TestFulfill_EmailFailureKeepsAllocation(t *testing.T) {
	repo := newFakeRepo()
	repo.addCode(1, 5000, "CODE-CCCC")
	mailer := &fakeMailer{fail: true}
	alerter := &fakeAlerter{}
	svc := NewService(repo, mailer, alerter)

	order := paidOrder(3, 1, 1, 5000)
	repo.addOrder(order)

	result, err := svc.Fulfill(context.Background(), order, "tx-3")
	if err != nil {
		t.Fatalf("unexpected fulfill error: %v", err)
	}
	if result.EmailStatus != models.EmailStatusFailed {
		t.Fatalf("expected email status failed, got %q", result.EmailStatus)
	}
	if repo.emailStatus[order.ID] != models.EmailStatusFailed {
		t.Fatalf("expected persisted email status failed, got %q", repo.emailStatus[order.ID])
	}
	// Inventory is never rolled back after an email failure.
	if repo.soldCount() != 1 {
		t.Fatalf("expected code to stay sold, got %d sold", repo.soldCount())
	}
	if len(repo.proofs) != 0 {
		t.Fatalf("expected no proofs for a failed delivery, got %d", len(repo.proofs))
	}
	if len(alerter.raised) != 1 || alerter.raised[0].alertType != models.NotificationTypeDeliveryFailed {
		t.Fatalf("expected one delivery_failed alert, got %+v", alerter.raised)
	}
}

func TestRedeliver_ReusesBoundCodes(t *testing.T) {
	repo := newFakeRepo()
	code := repo.addCode(1, 2500, "CODE-DDDD")
	mailer := &fakeMailer{fail: true}
	alerter := &fakeAlerter{}
	svc := NewService(repo, mailer, alerter)

	order := paidOrder(4, 1, 1, 2500)
	repo.addOrder(order)

	// First attempt claims the code but fails to deliver.
	if _, err := svc.Fulfill(context.Background(), order, "tx-4"); err != nil {
		t.Fatalf("unexpected fulfill error: %v", err)
	}
	if repo.soldCount() != 1 {
		t.Fatalf("expected code claimed on first attempt")
	}

	// Add spare inventory; redelivery must not touch it.
	repo.addCode(1, 2500, "CODE-EEEE")

	mailer.fail = false
	result, err := svc.Redeliver(context.Background(), order.PublicID, "tx-4")
	if err != nil {
		t.Fatalf("unexpected redeliver error: %v", err)
	}
	if result.EmailStatus != models.EmailStatusSent {
		t.Fatalf("expected redelivery to send, got %q", result.EmailStatus)
	}
	if repo.soldCount() != 1 {
		t.Fatalf("redelivery allocated a second code: %d sold", repo.soldCount())
	}
	if len(repo.proofs) != 1 {
		t.Fatalf("expected one proof after redelivery, got %d", len(repo.proofs))
	}
	if repo.proofs[0].CodeHash != proof.HashCode(code.Value) {
		t.Fatalf("proof hash does not match the originally bound code")
	}
}

func TestRedeliver_RejectsUnboundOrUnpaidOrders(t *testing.T) {
	repo := newFakeRepo()
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	svc := NewService(repo, mailer, alerter)

	pending := paidOrder(5, 1, 1, 2500)
	pending.Status = models.OrderStatusPending
	repo.addOrder(pending)
	if _, err := svc.Redeliver(context.Background(), pending.PublicID, "tx-5"); err == nil {
		t.Fatalf("expected redelivery of a pending order to fail")
	}

	unbound := paidOrder(6, 1, 1, 2500)
	repo.addOrder(unbound)
	if _, err := svc.Redeliver(context.Background(), unbound.PublicID, "tx-6"); err == nil {
		t.Fatalf("expected redelivery without bound codes to fail")
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no emails, got %d", len(mailer.sent))
	}
}

func TestFulfill_GiftRecipientGetsSeparateEmail(t *testing.T) {
	repo := newFakeRepo()
	repo.addCode(1, 2500, "CODE-FFFF")
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	svc := NewService(repo, mailer, alerter)

	order := paidOrder(7, 1, 1, 2500)
	order.GiftEmail = "friend@example.com"
	order.GiftMessage = "happy birthday"
	repo.addOrder(order)

	result, err := svc.Fulfill(context.Background(), order, "tx-7")
	if err != nil {
		t.Fatalf("unexpected fulfill error: %v", err)
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("expected payer + gift emails, got %d", len(mailer.sent))
	}
	if mailer.sent[1].to != "friend@example.com" {
		t.Fatalf("gift email went to %q", mailer.sent[1].to)
	}
	// One proof per transmission of the code.
	if result.ProofCount != 2 {
		t.Fatalf("expected 2 proofs (payer + gift), got %d", result.ProofCount)
	}
}

func TestFulfill_LastCodeContention(t *testing.T) {
	repo := newFakeRepo()
	repo.addCode(1, 2500, "CODE-LAST")
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	svc := NewService(repo, mailer, alerter)

	first := paidOrder(8, 1, 1, 2500)
	second := paidOrder(9, 1, 1, 2500)
	repo.addOrder(first)
	repo.addOrder(second)

	var wg sync.WaitGroup
	results := make([]*FulfillmentResult, 2)
	for i, o := range []*models.Order{first, second} {
		wg.Add(1)
		go func(idx int, ord *models.Order) {
			defer wg.Done()
			r, err := svc.Fulfill(context.Background(), ord, fmt.Sprintf("tx-contend-%d", idx))
			if err != nil {
				t.Errorf("fulfill %d: %v", idx, err)
				return
			}
			results[idx] = r
		}(i, o)
	}
	wg.Wait()

	winners := 0
	reviews := 0
	for _, r := range results {
		if r == nil {
			t.Fatalf("missing result")
		}
		switch {
		case r.Allocated == 1 && r.Unavailable == 0:
			winners++
		case r.Allocated == 0 && r.Unavailable == 1:
			reviews++
		default:
			t.Fatalf("unexpected result %+v", r)
		}
	}
	if winners != 1 || reviews != 1 {
		t.Fatalf("expected exactly one winner and one manual review, got %d/%d", winners, reviews)
	}
	if repo.soldCount() != 1 {
		t.Fatalf("the last code was sold %d times", repo.soldCount())
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email for the winning order, got %d", len(mailer.sent))
	}
}

func TestVerifyDeliveredCode(t *testing.T) {
	repo := newFakeRepo()
	repo.addCode(1, 2500, "CODE-PROOF")
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	svc := NewService(repo, mailer, alerter)

	order := paidOrder(10, 1, 1, 2500)
	repo.addOrder(order)
	if _, err := svc.Fulfill(context.Background(), order, "tx-10"); err != nil {
		t.Fatalf("unexpected fulfill error: %v", err)
	}

	match, err := svc.VerifyDeliveredCode(context.Background(), "tx-10", "CODE-PROOF")
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if !match {
		t.Fatalf("expected delivered code to verify")
	}

	match, err = svc.VerifyDeliveredCode(context.Background(), "tx-10", "CODE-OTHER")
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if match {
		t.Fatalf("expected foreign code to fail verification")
	}

	if _, err := svc.VerifyDeliveredCode(context.Background(), "tx-unknown", "CODE-PROOF"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found for unknown transaction, got %v", err)
	}
}
