package agent

import (
	"strings"

	"commerce-agent/internal/domain"
	"commerce-agent/internal/policy"
)

func buildSystemPrompt(pinned string, intent domain.Intent) string {
	lines := []string{
		"Role:",
		"You are the shopping assistant for an online clothing store.",
		"",
		"Rules:",
		"1) Use tools for every product, shipping and order fact. Never invent products, prices, sizes or order details.",
		"2) Call tools with exactly the arguments their schemas describe.",
		"3) When you have what you need, reply without calling tools.",
		"4) Never offer discount codes or promotions.",
	}
	switch intent {
	case domain.IntentOrderHelp:
		lines = append(lines,
			"",
			"Order policy:",
			policy.Rule,
			"To check a cancellation, first call order_lookup with the order id and email, then call order_cancel for the same order id.",
			"If the order id or email is missing, ask the customer for it.",
		)
	case domain.IntentProductAssist:
		lines = append(lines,
			"",
			"Product guidance:",
			"Search the catalog with product_search. Use size_recommender for fit questions and eta for shipping questions.",
		)
	}
	if p := strings.TrimSpace(pinned); p != "" {
		lines = append(lines, "", p)
	}
	return strings.Join(lines, "\n")
}
