package agent

import (
	"slices"
	"time"

	"commerce-agent/internal/domain"
)

// IntentSource records how the router arrived at the intent.
const (
	SourceKeyword  = "keyword"
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// LoopExit is the typed reason the reasoning loop stopped asking the model.
type LoopExit string

const (
	ExitNone      LoopExit = ""
	ExitAnswered  LoopExit = "answered"
	ExitExhausted LoopExit = "exhausted"
	ExitUpstream  LoopExit = "upstream_failure"
)

// State is the per-request shared state. Nodes never mutate a State they
// receive; they return a new version built with the with* helpers.
type State struct {
	RequestID string
	// Instant is the evaluation instant for every cancellation check in
	// this request.
	Instant time.Time

	Messages     []domain.ChatMessage
	Intent       domain.Intent
	IntentSource string
	// Guardrail is set when the request asked for something the store will
	// not provide, such as discount codes.
	Guardrail bool

	Pending     []domain.ToolCall
	ToolCalls   []domain.ToolCall
	ToolResults []domain.ToolResult
	Verdict     *domain.PolicyVerdict
	Warnings    []domain.Warning

	Iterations int
	Exit       LoopExit
	Draft      string
	Reply      string
}

// NewState seeds a request with its conversation history.
func NewState(requestID string, instant time.Time, history []domain.ChatMessage) State {
	return State{
		RequestID: requestID,
		Instant:   instant.UTC(),
		Messages:  slices.Clone(history),
	}
}

// clone returns a copy whose slices can be appended to without touching s.
func (s State) clone() State {
	s.Messages = slices.Clip(s.Messages)
	s.Pending = slices.Clip(s.Pending)
	s.ToolCalls = slices.Clip(s.ToolCalls)
	s.ToolResults = slices.Clip(s.ToolResults)
	s.Warnings = slices.Clip(s.Warnings)
	return s
}

func (s State) withMessages(msgs ...domain.ChatMessage) State {
	n := s.clone()
	n.Messages = append(n.Messages, msgs...)
	return n
}

func (s State) withWarnings(ws ...domain.Warning) State {
	n := s.clone()
	n.Warnings = append(n.Warnings, ws...)
	return n
}

// LastUserMessage returns the content of the most recent user turn.
func (s State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == domain.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Trace projects the state into the audit trace.
func (s State) Trace(createdAt time.Time) domain.Trace {
	return domain.Trace{
		RequestID:     s.RequestID,
		Intent:        s.Intent,
		IntentSource:  s.IntentSource,
		ToolCalls:     nonNil(s.ToolCalls),
		ToolResults:   nonNil(s.ToolResults),
		PolicyVerdict: s.Verdict,
		Warnings:      s.Warnings,
		Iterations:    s.Iterations,
		FinalReply:    s.Reply,
		CreatedAt:     createdAt.UTC(),
	}
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return slices.Clone(in)
}

func (s State) hasDispatched(name string) bool {
	return slices.ContainsFunc(s.ToolCalls, func(c domain.ToolCall) bool { return c.Name == name })
}

func (s State) resultFor(callID string) (domain.ToolResult, bool) {
	for _, r := range s.ToolResults {
		if r.CallID == callID {
			return r, true
		}
	}
	return domain.ToolResult{}, false
}
