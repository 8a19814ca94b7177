package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"commerce-agent/internal/domain"
	"commerce-agent/internal/policy"
)

const (
	toolOrderLookup = "order_lookup"
	toolOrderCancel = "order_cancel"
)

var newCallID = func() string {
	return "call_" + uuid.NewString()
}

// reason runs one iteration of the reasoning loop: it asks the model for
// tool calls or an answer and queues whatever must be dispatched next.
func (g *Graph) reason(ctx context.Context, s State) State {
	n := s.clone()
	n.Pending = nil

	var proposed []domain.ToolCall
	if s.Iterations >= g.maxIterations {
		n.Exit = ExitExhausted
		n = n.withWarnings(domain.Warning{
			Category: domain.WarningLoopExhausted,
			Detail:   fmt.Sprintf("reasoning loop stopped after %d iterations", s.Iterations),
		})
	} else {
		n.Iterations++
		reply, err := g.model.Complete(ctx, domain.ModelRequest{
			Model:       g.modelName,
			Messages:    g.loopMessages(s),
			Tools:       g.tools.Specs(),
			Temperature: g.temperature,
		})
		switch {
		case err != nil:
			n.Exit = ExitUpstream
			n = n.withWarnings(domain.Warning{Category: domain.WarningUpstream, Detail: err.Error()})
		case len(reply.ToolCalls) == 0:
			n.Exit = ExitAnswered
			n.Draft = reply.Content
		default:
			proposed = reply.ToolCalls
		}
	}

	// Every verified order in an order_help conversation gets a
	// cancellation check, whether or not the model asked for one.
	if n.Intent == domain.IntentOrderHelp {
		for _, orderID := range unmatchedLookups(s.ToolCalls, s.ToolResults, proposed) {
			proposed = append(proposed, domain.ToolCall{
				ID:        newCallID(),
				Name:      toolOrderCancel,
				Arguments: map[string]any{"order_id": orderID},
			})
			n = n.withWarnings(domain.Warning{
				Category: domain.WarningPolicyContract,
				Detail:   fmt.Sprintf("order_lookup for %q was not followed by order_cancel; added by the loop", orderID),
			})
		}
	}
	if len(proposed) == 0 {
		return n
	}

	used := make(map[string]bool, len(s.ToolCalls)+len(proposed))
	for _, c := range s.ToolCalls {
		used[c.ID] = true
	}
	calls := make([]domain.ToolCall, 0, len(proposed))
	for _, c := range proposed {
		c = g.prepareCall(s, c, used)
		used[c.ID] = true
		calls = append(calls, c)
	}
	n.Pending = calls
	return n.withMessages(domain.ChatMessage{Role: domain.RoleAssistant, Content: "", ToolCalls: calls})
}

// prepareCall gives the call a fresh id when it has none or reuses one in
// used, and pins order_cancel to the request's evaluation instant. The
// caller's map is never modified.
func (g *Graph) prepareCall(s State, c domain.ToolCall, used map[string]bool) domain.ToolCall {
	if c.ID == "" || used[c.ID] {
		c.ID = newCallID()
	}
	args := make(map[string]any, len(c.Arguments)+1)
	for k, v := range c.Arguments {
		args[k] = v
	}
	if c.Name == toolOrderCancel {
		args["evaluation_instant"] = s.Instant.Format(timeLayout)
	}
	c.Arguments = args
	return c
}

func (g *Graph) loopMessages(s State) []domain.ChatMessage {
	msgs := make([]domain.ChatMessage, 0, len(s.Messages)+1)
	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: buildSystemPrompt(g.pinnedPrompt, s.Intent)})
	return append(msgs, s.Messages...)
}

// dispatch executes the queued calls in order and appends their results.
func (g *Graph) dispatch(ctx context.Context, s State) State {
	n := s.clone()
	n.Pending = nil
	for _, call := range s.Pending {
		res := g.tools.Dispatch(ctx, call)
		n.ToolCalls = append(n.ToolCalls, call)
		n.ToolResults = append(n.ToolResults, res)
		n = n.withMessages(domain.ChatMessage{
			Role:       domain.RoleTool,
			ToolCallID: call.ID,
			Content:    toolMessageContent(res),
		})
		if !res.OK {
			n = n.withWarnings(domain.Warning{
				Category: domain.WarningToolFailure,
				Detail:   fmt.Sprintf("%s (%s): %s", call.Name, res.Error.Code, res.Error.Message),
			})
		}
		g.observer.ToolDispatched(call.Name, res.OK)
	}
	return n
}

func toolMessageContent(res domain.ToolResult) string {
	var body any = res.Payload
	if !res.OK {
		body = map[string]any{"error": res.Error}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return `{"error":{"code":"unencodable_result"}}`
	}
	return string(raw)
}

// unmatchedLookups returns, in order, the ids of successfully looked-up
// orders that have neither a later dispatched order_cancel nor one among
// the proposed calls.
func unmatchedLookups(calls []domain.ToolCall, results []domain.ToolResult, proposed []domain.ToolCall) []string {
	ok := make(map[string]bool, len(results))
	for _, r := range results {
		ok[r.CallID] = r.OK
	}
	var missing []string
	for i, c := range calls {
		if c.Name != toolOrderLookup || !ok[c.ID] {
			continue
		}
		id := policy.OrderIDArg(c)
		if id == "" || slices.Contains(missing, id) {
			continue
		}
		if hasCancelFor(calls[i+1:], id) || hasCancelFor(proposed, id) {
			continue
		}
		missing = append(missing, id)
	}
	return missing
}

func hasCancelFor(calls []domain.ToolCall, orderID string) bool {
	return slices.ContainsFunc(calls, func(c domain.ToolCall) bool {
		return c.Name == toolOrderCancel && policy.OrderIDArg(c) == orderID
	})
}
