package fulfillment

import (
	"fmt"
	"html"
	"strings"

	"github.com/LukasWeber/CardForge/app/models"
)

// ComposeConfirmationEmail builds the payer-facing message embedding every
// purchased code exactly once.
func ComposeConfirmationEmail(order *models.Order, allocations []ItemAllocation) (string, string) {
	subject := fmt.Sprintf("Your gift codes for order %s", order.PublicID)

	var b strings.Builder
	b.WriteString("<h2>Thank you for your purchase!</h2>")
	b.WriteString(fmt.Sprintf("<p>Order <strong>%s</strong> has been paid. Here are your codes:</p>", html.EscapeString(order.PublicID)))
	writeCodeTable(&b, allocations)
	b.WriteString("<p>Keep these codes safe. Each code can be redeemed once.</p>")

	return subject, b.String()
}

// ComposeGiftEmail builds the message for a distinct gift recipient,
// including the personal note when one was left at checkout.
func ComposeGiftEmail(order *models.Order, allocations []ItemAllocation) (string, string) {
	subject := "You have received a gift card"

	var b strings.Builder
	b.WriteString("<h2>Someone sent you a gift!</h2>")
	if order.GiftMessage != "" {
		b.WriteString(fmt.Sprintf("<blockquote>%s</blockquote>", html.EscapeString(order.GiftMessage)))
	}
	writeCodeTable(&b, allocations)
	b.WriteString("<p>Each code can be redeemed once.</p>")

	return subject, b.String()
}

func writeCodeTable(b *strings.Builder, allocations []ItemAllocation) {
	b.WriteString("<table border=\"1\" cellpadding=\"6\"><tr><th>Value</th><th>Code</th></tr>")
	for _, a := range allocations {
		if a.Code == nil {
			continue
		}
		b.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td><code>%s</code></td></tr>",
			formatCents(a.Item.NominalCents),
			html.EscapeString(a.Code.Value),
		))
	}
	b.WriteString("</table>")
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
