// Package tools implements the closed set of tools the reasoning loop may
// call. Tools read from a Store and never mutate it.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"commerce-agent/internal/domain"
)

// CatalogVersion identifies the tool contract set exposed to the model.
const CatalogVersion = "2025-09"

const (
	ProductSearch   = "product_search"
	SizeRecommender = "size_recommender"
	ETA             = "eta"
	OrderLookup     = "order_lookup"
	OrderCancel     = "order_cancel"
)

// Store is the read-only product/order data source behind the tools.
type Store interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	FindOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// Tool is one callable contract.
type Tool interface {
	Spec() domain.ToolSpec
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// Registry maps tool names to their implementations. The set is fixed at
// construction; unknown names are rejected, never executed.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds the registry for every tool in the catalog.
func NewRegistry(store Store) (*Registry, error) {
	if store == nil {
		return nil, errors.New("tools: store must not be nil")
	}
	return &Registry{tools: map[string]Tool{
		ProductSearch:   &productSearch{store: store},
		SizeRecommender: sizeRecommender{},
		ETA:             eta{},
		OrderLookup:     &orderLookup{store: store},
		OrderCancel:     &orderCancel{store: store},
	}}, nil
}

// Version returns the catalog version.
func (r *Registry) Version() string { return CatalogVersion }

// Specs returns the tool catalog sorted by name.
func (r *Registry) Specs() []domain.ToolSpec {
	specs := make([]domain.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Has reports whether name is a registered tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Dispatch runs one tool call and converts the outcome into a result.
// Failures are returned as failed results, not Go errors.
func (r *Registry) Dispatch(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	res := domain.ToolResult{CallID: call.ID, Tool: call.Name}
	t, ok := r.tools[call.Name]
	if !ok {
		res.Error = &domain.ToolError{Code: CodeUnknownTool, Message: fmt.Sprintf("tool %q is not in the catalog", call.Name)}
		return res
	}

	if call.MalformedArguments != "" {
		res.Error = &domain.ToolError{Code: CodeInvalidArguments, Message: "arguments are not a valid JSON object"}
		return res
	}
	payload, err := t.Invoke(ctx, call.Arguments)
	if err != nil {
		var toolErr *Error
		if errors.As(err, &toolErr) {
			res.Error = &domain.ToolError{Code: toolErr.Code, Message: toolErr.Message}
		} else {
			slog.ErrorContext(ctx, "tool invocation failed", "tool", call.Name, "call_id", call.ID, "err", err)
			res.Error = &domain.ToolError{Code: CodeUnavailable, Message: "the data store is unavailable, please try again later"}
		}
		return res
	}
	res.OK = true
	res.Payload = payload
	return res
}
