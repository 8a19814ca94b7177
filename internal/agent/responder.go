package agent

import (
	"fmt"
	"strings"

	"commerce-agent/internal/domain"
)

// Alternatives offered when a cancellation is blocked.
var blockedAlternatives = []string{
	"Update the shipping address if the order has not shipped yet.",
	"Convert the order total to store credit once it arrives.",
	"Talk to our support team about a return after delivery.",
}

const (
	exhaustedNotice = "I couldn't finish every step of your request, so here is what I found so far."
	upstreamNotice  = "I'm having trouble reaching our assistant service right now."

	interruptedNotice = "I couldn't finish your request. Please try again."
)

// respond builds the reply from tool results and the guard's verdict only.
// The model's draft is used solely when no tool produced anything to say.
func respond(s State) string {
	var b strings.Builder
	switch s.Exit {
	case ExitExhausted:
		b.WriteString(exhaustedNotice + "\n\n")
	case ExitUpstream:
		b.WriteString(upstreamNotice + "\n\n")
	}

	switch s.Intent {
	case domain.IntentOrderHelp:
		b.WriteString(orderReply(s))
	case domain.IntentProductAssist:
		b.WriteString(productReply(s))
	default:
		b.WriteString(otherReply(s))
	}
	return strings.TrimSpace(b.String())
}

func otherReply(s State) string {
	if s.Guardrail {
		return "Sorry, I can't provide discount or promo codes.\n" +
			"Here is what I can do instead:\n" +
			"- Help you find dresses within your budget with a price filter.\n" +
			"- Point you to our newsletter sign-up, where current offers are announced."
	}
	return "I can help with finding and comparing products, sizing, shipping times, and checking or cancelling orders.\n" +
		"For anything else, our support team is happy to help."
}

func orderReply(s State) string {
	v := s.Verdict
	if v == nil {
		return orderReplyWithoutVerdict(s)
	}
	if v.Status != domain.VerdictResolved {
		return fmt.Sprintf("I couldn't verify order %s, so I can't confirm whether it can be cancelled. "+
			"Please share the order ID and the email address used to place it.", orderLabel(v.OrderID))
	}
	if v.Eligible {
		return fmt.Sprintf("Order %s was placed %s ago, which is within our 60-minute cancellation window, so it can be cancelled. "+
			"Reply to confirm and we'll take care of it.", v.OrderID, minutes(v.ElapsedMinutes))
	}

	var b strings.Builder
	if v.ElapsedMinutes <= 0 {
		fmt.Fprintf(&b, "I can't cancel order %s because its creation time is after the time of this check.", v.OrderID)
	} else {
		fmt.Fprintf(&b, "Order %s was placed %s ago, which is past our 60-minute cancellation window, so it can't be cancelled.", v.OrderID, minutes(v.ElapsedMinutes))
	}
	b.WriteString("\nHere is what I can do instead:")
	for _, alt := range blockedAlternatives {
		b.WriteString("\n- " + alt)
	}
	return b.String()
}

func orderReplyWithoutVerdict(s State) string {
	var parts []string
	for _, r := range s.ToolResults {
		switch {
		case r.Tool == toolOrderLookup && !r.OK:
			parts = append(parts, "I couldn't find an order matching that order ID and email address. Please double-check both and try again.")
		case r.Tool == toolOrderLookup && r.OK:
			if o, ok := r.Payload.(domain.Order); ok {
				parts = append(parts, fmt.Sprintf("I found order %s placed on %s for $%.2f.", o.OrderID, o.CreatedAt.UTC().Format("Jan 2, 2006 15:04 UTC"), o.Total))
			}
		case r.Tool == "eta" && r.OK:
			if est, ok := r.Payload.(domain.ShippingEstimate); ok {
				parts = append(parts, est.Window)
			}
		}
	}
	if len(parts) > 0 {
		return strings.Join(dedupe(parts), "\n")
	}
	return "To help with your order, please share your order ID (for example A1003) and the email address used to place it."
}

func productReply(s State) string {
	var parts []string
	if products, searched := latestProducts(s); searched {
		parts = append(parts, compareProducts(products))
	}
	for _, r := range s.ToolResults {
		switch p := r.Payload.(type) {
		case domain.SizeAdvice:
			parts = append(parts, fmt.Sprintf("Size advice: %s. %s", p.Size, p.Rationale))
		case domain.ShippingEstimate:
			parts = append(parts, p.Window)
		}
		if !r.OK && r.Error != nil && r.Error.Code == "invalid_zip" {
			parts = append(parts, "That zip code doesn't look right. Please share a 5 or 6 digit zip code and I'll check shipping times.")
		}
	}
	if len(parts) > 0 {
		return strings.Join(dedupe(parts), "\n\n")
	}
	if d := strings.TrimSpace(s.Draft); d != "" && s.Exit == ExitAnswered {
		return d
	}
	return "Tell me a bit more about what you're looking for, such as the occasion, budget or size, and I'll find some options."
}

// latestProducts returns the most recent successful product_search result.
func latestProducts(s State) ([]domain.Product, bool) {
	for i := len(s.ToolResults) - 1; i >= 0; i-- {
		r := s.ToolResults[i]
		if !r.OK {
			continue
		}
		if products, ok := r.Payload.([]domain.Product); ok {
			return products, true
		}
	}
	return nil, false
}

func compareProducts(products []domain.Product) string {
	switch len(products) {
	case 0:
		return "I couldn't find any products matching that request. Try widening the budget or using fewer filters."
	case 1:
		return "I found one match:\n" + describeProduct(products[0])
	}
	a, b := products[0], products[1]
	var sb strings.Builder
	sb.WriteString("Here are two options side by side:\n")
	sb.WriteString("1. " + describeProduct(a) + "\n")
	sb.WriteString("2. " + describeProduct(b) + "\n")
	switch {
	case a.Price < b.Price:
		fmt.Fprintf(&sb, "The %s is $%.2f less than the %s.", a.Title, b.Price-a.Price, b.Title)
	case b.Price < a.Price:
		fmt.Fprintf(&sb, "The %s is $%.2f less than the %s.", b.Title, a.Price-b.Price, a.Title)
	default:
		fmt.Fprintf(&sb, "Both are priced at $%.2f.", a.Price)
	}
	if a.Fabric != "" && b.Fabric != "" && a.Fabric != b.Fabric {
		fmt.Fprintf(&sb, " The first is %s, the second %s.", a.Fabric, b.Fabric)
	}
	return sb.String()
}

func describeProduct(p domain.Product) string {
	desc := fmt.Sprintf("%s ($%.2f)", p.Title, p.Price)
	if len(p.Sizes) > 0 {
		desc += ", sizes " + strings.Join(p.Sizes, "/")
	}
	if p.Color != "" {
		desc += ", " + p.Color
	}
	return desc
}

func orderLabel(id string) string {
	if id == "" {
		return "(no order ID given)"
	}
	return id
}

func minutes(n int) string {
	if n == 1 {
		return "1 minute"
	}
	if n >= 120 {
		return fmt.Sprintf("%d hours %d minutes", n/60, n%60)
	}
	return fmt.Sprintf("%d minutes", n)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
