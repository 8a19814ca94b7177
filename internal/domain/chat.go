package domain

import "encoding/json"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is the provider-agnostic chat message shape used by the agent
// graph and LLM integrations. Assistant messages may carry tool calls; tool
// messages carry the id of the call they answer.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolSpec describes one callable tool to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ResponseFormat constrains a model reply to a strict JSON schema.
type ResponseFormat struct {
	Name   string
	Schema json.RawMessage
}

// ModelRequest is everything the model client needs for one completion.
type ModelRequest struct {
	Model          string
	Messages       []ChatMessage
	Tools          []ToolSpec
	Temperature    *float64
	ResponseFormat *ResponseFormat
}

// ModelReply is either a final message (no tool calls) or a list of
// requested tool calls.
type ModelReply struct {
	Content   string
	ToolCalls []ToolCall
}
