package gateway

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	BillStatusPaid     = "PAID"
	BillStatusRejected = "REJECTED"
	BillStatusExpired  = "EXPIRED"
)

// WebhookEvent is the normalized payload of one inbound gateway callback.
type WebhookEvent struct {
	BillID   string `json:"bill_id"`
	Status   string `json:"status"`
	OrderRef string `json:"order_ref"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ParseWebhookEvent decodes and sanity-checks a raw webhook body.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	ev.BillID = strings.TrimSpace(ev.BillID)
	ev.Status = strings.ToUpper(strings.TrimSpace(ev.Status))
	ev.OrderRef = strings.TrimSpace(ev.OrderRef)
	if ev.BillID == "" {
		return nil, errors.New("webhook payload has no bill_id")
	}
	if ev.Status == "" {
		return nil, errors.New("webhook payload has no status")
	}
	return &ev, nil
}

// IsPaid reports whether the declared status confirms payment.
func (ev *WebhookEvent) IsPaid() bool {
	return ev.Status == BillStatusPaid
}
