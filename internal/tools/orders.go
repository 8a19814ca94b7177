package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce-agent/internal/domain"
	"commerce-agent/internal/policy"
)

type orderLookupArgs struct {
	OrderID string `json:"order_id" validate:"required,order_id"`
	Email   string `json:"email" validate:"required,email"`
}

type orderCancelArgs struct {
	OrderID           string `json:"order_id" validate:"required,order_id"`
	EvaluationInstant string `json:"evaluation_instant" validate:"required"`
}

type orderLookup struct {
	store Store
}

func (t *orderLookup) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        OrderLookup,
		Description: "Look up an order. The order id and the email on the order must both match.",
		Parameters: json.RawMessage(`{
			"type":"object",
			"properties":{
				"order_id":{"type":"string","description":"Order id, e.g. A1003."},
				"email":{"type":"string","description":"Email address the order was placed with."}
			},
			"required":["order_id","email"]
		}`),
	}
}

func (t *orderLookup) Invoke(ctx context.Context, raw map[string]any) (any, error) {
	var args orderLookupArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	order, err := t.store.FindOrder(ctx, args.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, fmt.Errorf("tools: find order %s: %w", args.OrderID, err)
	}
	// The email is an authorization check: a mismatch looks exactly like a
	// missing order.
	if order.Email != args.Email {
		return nil, notFound()
	}
	return order, nil
}

func notFound() *Error {
	return newError(CodeNotFound, "order not found, please check your order ID and email address")
}

type orderCancel struct {
	store Store
}

func (t *orderCancel) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        OrderCancel,
		Description: "Check whether an order can be cancelled under the 60-minute policy. Call this right after a successful order_lookup.",
		Parameters: json.RawMessage(`{
			"type":"object",
			"properties":{
				"order_id":{"type":"string","description":"Order id previously confirmed with order_lookup."},
				"evaluation_instant":{"type":"string","description":"RFC 3339 instant to evaluate the policy at. Supplied by the system."}
			},
			"required":["order_id"]
		}`),
	}
}

func (t *orderCancel) Invoke(ctx context.Context, raw map[string]any) (any, error) {
	var args orderCancelArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	instant, err := time.Parse(time.RFC3339, strings.TrimSpace(args.EvaluationInstant))
	if err != nil {
		return nil, newError(CodeInvalidArguments, "invalid timestamp format: %s", args.EvaluationInstant)
	}
	order, err := t.store.FindOrder(ctx, args.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, newError(CodeNotFound, "order %s not found in the system", args.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("tools: find order %s: %w", args.OrderID, err)
	}

	d := policy.Evaluate(order.CreatedAt, instant)
	return domain.CancelPreview{
		OrderID:           order.OrderID,
		Eligible:          d.Eligible,
		MinutesSinceOrder: d.ElapsedMinutes,
		Reason:            d.Reason,
		Policy:            policy.Rule,
	}, nil
}
