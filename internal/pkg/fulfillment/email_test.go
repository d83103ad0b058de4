package fulfillment

import (
	"strings"
	"testing"

	"github.com/LukasWeber/CardForge/app/models"
)

func TestComposeConfirmationEmail(t *testing.T) {
	order := &models.Order{PublicID: "abc-123", Currency: "EUR"}
	allocations := []ItemAllocation{
		{Item: models.OrderItem{NominalCents: 2500}, Code: &models.Code{Value: "GIFT-0001"}},
		{Item: models.OrderItem{NominalCents: 5000}, Code: &models.Code{Value: "GIFT-0002"}},
	}

	subject, body := ComposeConfirmationEmail(order, allocations)
	if !strings.Contains(subject, "abc-123") {
		t.Fatalf("subject does not reference the order: %q", subject)
	}
	for _, code := range []string{"GIFT-0001", "GIFT-0002"} {
		if strings.Count(body, code) != 1 {
			t.Fatalf("expected code %s to appear exactly once, got %d", code, strings.Count(body, code))
		}
	}
	if !strings.Contains(body, "25.00") || !strings.Contains(body, "50.00") {
		t.Fatalf("nominal values missing from body: %s", body)
	}
}

func TestComposeConfirmationEmail_EscapesCodeValue(t *testing.T) {
	order := &models.Order{PublicID: "abc-123"}
	allocations := []ItemAllocation{
		{Item: models.OrderItem{NominalCents: 1000}, Code: &models.Code{Value: "<script>x</script>"}},
	}

	_, body := ComposeConfirmationEmail(order, allocations)
	if strings.Contains(body, "<script>") {
		t.Fatalf("code value was not escaped: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Fatalf("expected escaped code value in body: %s", body)
	}
}

func TestComposeGiftEmail(t *testing.T) {
	order := &models.Order{PublicID: "abc-123", GiftEmail: "friend@example.com", GiftMessage: "enjoy <3"}
	allocations := []ItemAllocation{
		{Item: models.OrderItem{NominalCents: 2500}, Code: &models.Code{Value: "GIFT-0003"}},
	}

	_, body := ComposeGiftEmail(order, allocations)
	if !strings.Contains(body, "GIFT-0003") {
		t.Fatalf("gift body does not contain the code")
	}
	if !strings.Contains(body, "<blockquote>enjoy &lt;3</blockquote>") {
		t.Fatalf("gift message missing or unescaped: %s", body)
	}

	// Without a message the blockquote is omitted entirely.
	order.GiftMessage = ""
	_, body = ComposeGiftEmail(order, allocations)
	if strings.Contains(body, "<blockquote>") {
		t.Fatalf("unexpected blockquote for empty gift message")
	}
}

func TestWriteCodeTable_SkipsUnallocatedItems(t *testing.T) {
	var b strings.Builder
	writeCodeTable(&b, []ItemAllocation{
		{Item: models.OrderItem{NominalCents: 2500}, Code: &models.Code{Value: "GIFT-0004"}},
		{Item: models.OrderItem{NominalCents: 2500}}, // no code bound
	})
	body := b.String()
	if strings.Count(body, "<tr>") != 2 { // header + one code row
		t.Fatalf("expected one data row, got: %s", body)
	}
}
