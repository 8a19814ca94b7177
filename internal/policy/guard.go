package policy

import (
	"fmt"
	"strings"
	"time"

	"commerce-agent/internal/domain"
)

const (
	toolOrderLookup = "order_lookup"
	toolOrderCancel = "order_cancel"
)

// Guard recomputes cancellation eligibility from the trace. Its verdict is
// the only eligibility the responder may read.
type Guard struct{}

// Adjudicate inspects the calls and results of one request and returns the
// verdict for the most recent order_cancel call, or nil when no cancellation
// was attempted. A cancellation whose order was not resolved by an earlier
// successful order_lookup stays pending and is never eligible.
func (Guard) Adjudicate(calls []domain.ToolCall, results []domain.ToolResult, instant time.Time) (*domain.PolicyVerdict, []domain.Warning) {
	byCall := make(map[string]domain.ToolResult, len(results))
	for _, r := range results {
		byCall[r.CallID] = r
	}

	verified := make(map[string]domain.Order)
	var (
		verdict  *domain.PolicyVerdict
		warnings []domain.Warning
	)
	for _, call := range calls {
		res, dispatched := byCall[call.ID]
		if !dispatched {
			continue
		}
		switch call.Name {
		case toolOrderLookup:
			if order, ok := res.Payload.(domain.Order); ok && res.OK {
				verified[order.OrderID] = order
			}
		case toolOrderCancel:
			orderID := OrderIDArg(call)
			v := &domain.PolicyVerdict{
				OrderID:      orderID,
				EvaluatedAt:  instant.UTC(),
				ToolEligible: previewEligibility(res),
			}
			order, ok := verified[orderID]
			if !ok {
				v.Status = domain.VerdictPending
				v.Reason = "order has not been verified by a successful order lookup"
				warnings = append(warnings, domain.Warning{
					Category: domain.WarningPolicyContract,
					Detail:   fmt.Sprintf("order_cancel for %q without a prior successful order_lookup", orderID),
				})
			} else {
				d := Evaluate(order.CreatedAt, instant)
				v.Status = domain.VerdictResolved
				v.Eligible = d.Eligible
				v.ElapsedMinutes = d.ElapsedMinutes
				v.Reason = d.Reason
			}
			if v.ToolEligible != nil && *v.ToolEligible != v.Eligible {
				v.OverriddenTool = true
			}
			verdict = v
		}
	}
	return verdict, warnings
}

// OrderIDArg extracts the trimmed order_id argument from a call.
func OrderIDArg(call domain.ToolCall) string {
	s, _ := call.Arguments["order_id"].(string)
	return strings.TrimSpace(s)
}

func previewEligibility(res domain.ToolResult) *bool {
	if !res.OK {
		return nil
	}
	preview, ok := res.Payload.(domain.CancelPreview)
	if !ok {
		return nil
	}
	eligible := preview.Eligible
	return &eligible
}
