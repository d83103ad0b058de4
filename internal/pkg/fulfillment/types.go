package fulfillment

import "github.com/LukasWeber/CardForge/app/models"

// ItemAllocation is the per-item outcome of an inventory claim: either a
// bound code or nothing available. Failures here are data, not errors; the
// order-level decision is made only after every item was attempted.
type ItemAllocation struct {
	Item models.OrderItem
	Code *models.Code // nil when no code was available
}

// Allocated reports whether the item received a code.
func (a ItemAllocation) Allocated() bool {
	return a.Code != nil
}

// FulfillmentResult summarizes one fulfillment attempt for a paid order.
// The webhook handler maps it to an HTTP response, which is always 200 once
// the webhook call itself has been durably recorded.
type FulfillmentResult struct {
	OrderStatus string
	EmailStatus string
	Allocated   int
	Unavailable int
	ProofCount  int
}
