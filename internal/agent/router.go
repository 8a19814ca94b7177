package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"commerce-agent/internal/domain"
)

var (
	orderIDMention = regexp.MustCompile(`(?i)\ba\d{4}\b`)
	wordPattern    = regexp.MustCompile(`[a-z0-9_]+`)

	orderKeywords = map[string]bool{
		"order": true, "orders": true, "cancel": true, "cancellation": true,
		"cancelled": true, "canceled": true, "order_id": true, "email": true,
		"refund": true, "return": true, "returns": true,
	}
	productKeywords = map[string]bool{
		"dress": true, "dresses": true, "product": true, "products": true,
		"wedding": true, "midi": true, "maxi": true, "price": true,
		"size": true, "sizes": true, "sizing": true, "wear": true, "fit": true,
		"eta": true, "shipping": true, "ship": true, "available": true,
		"recommend": true, "compare": true, "zip": true,
	}
	// Promotion requests are refused whatever else the message mentions.
	promotionKeywords = map[string]bool{
		"discount": true, "discounts": true, "coupon": true, "coupons": true,
		"promo": true, "promos": true, "promotion": true, "voucher": true, "vouchers": true,
	}
	// "code" is a promotion term unless it follows one of these.
	postalPrefixes = map[string]bool{"zip": true, "postal": true, "post": true, "pin": true}
	saleKeywords   = map[string]bool{"sale": true}
)

var intentSchema = json.RawMessage(`{
	"type":"object",
	"properties":{"intent":{"type":"string","enum":["product_assist","order_help","other"]}},
	"required":["intent"],
	"additionalProperties":false
}`)

const routerPrompt = `Classify the customer's message for an online clothing store.
- product_assist: finding, comparing, sizing or shipping questions about products.
- order_help: questions about an existing order, including status and cancellation.
- other: anything else.
Return JSON with a single key "intent".`

// keywordRoute classifies text lexically. ok is false when no keyword set
// matched. Promotion requests win over everything; then order terms win over
// product terms, which win over sale terms.
func keywordRoute(text string) (intent domain.Intent, guardrail bool, ok bool) {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if asksForPromotion(words) {
		return domain.IntentOther, true, true
	}
	if orderIDMention.MatchString(text) || containsAny(words, orderKeywords) {
		return domain.IntentOrderHelp, false, true
	}
	if containsAny(words, productKeywords) {
		return domain.IntentProductAssist, false, true
	}
	if containsAny(words, saleKeywords) {
		return domain.IntentOther, true, true
	}
	return "", false, false
}

func asksForPromotion(words []string) bool {
	for i, w := range words {
		if promotionKeywords[w] {
			return true
		}
		if (w == "code" || w == "codes") && (i == 0 || !postalPrefixes[words[i-1]]) {
			return true
		}
	}
	return false
}

func containsAny(words []string, set map[string]bool) bool {
	for _, w := range words {
		if set[w] {
			return true
		}
	}
	return false
}

// route sets the intent exactly once. The model is consulted only when no
// keyword matched; any failure there degrades to other with a warning.
func (g *Graph) route(ctx context.Context, s State) State {
	n := s.clone()
	text := s.LastUserMessage()
	if intent, guardrail, ok := keywordRoute(text); ok {
		n.Intent, n.Guardrail, n.IntentSource = intent, guardrail, SourceKeyword
		return n
	}

	intent, err := g.classify(ctx, text)
	if err != nil {
		n.Intent, n.IntentSource = domain.IntentOther, SourceFallback
		return n.withWarnings(domain.Warning{Category: domain.WarningClassification, Detail: err.Error()})
	}
	n.Intent, n.IntentSource = intent, SourceModel
	return n
}

func (g *Graph) classify(ctx context.Context, text string) (domain.Intent, error) {
	temp := 0.0
	reply, err := g.model.Complete(ctx, domain.ModelRequest{
		Model: g.modelName,
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: routerPrompt},
			{Role: domain.RoleUser, Content: text},
		},
		Temperature:    &temp,
		ResponseFormat: &domain.ResponseFormat{Name: "intent", Schema: intentSchema},
	})
	if err != nil {
		return "", fmt.Errorf("intent classification failed: %w", err)
	}
	var out struct {
		Intent domain.Intent `json:"intent"`
	}
	if err := json.Unmarshal([]byte(extractJSON(reply.Content)), &out); err != nil {
		return "", fmt.Errorf("intent classification returned malformed JSON: %w", err)
	}
	if !out.Intent.Valid() {
		return "", fmt.Errorf("intent classification returned unknown intent %q", out.Intent)
	}
	return out.Intent, nil
}

// extractJSON trims any prose around the first JSON object in s.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
