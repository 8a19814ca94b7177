package domain

import "time"

// Intent is the classified purpose of a request.
type Intent string

const (
	IntentProductAssist Intent = "product_assist"
	IntentOrderHelp     Intent = "order_help"
	IntentOther         Intent = "other"
)

// Valid reports whether i is one of the three known intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentProductAssist, IntentOrderHelp, IntentOther:
		return true
	}
	return false
}

// ToolCall is a single requested tool invocation. MalformedArguments holds
// the raw argument text when the model sent something that is not a JSON
// object; such a call is dispatched and fails with invalid_arguments.
type ToolCall struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Arguments          map[string]any `json:"arguments"`
	MalformedArguments string         `json:"malformed_arguments,omitempty"`
}

// ToolError describes why a tool call failed.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToolResult is the outcome of one dispatched ToolCall. Payload holds the
// tool's typed result (Order, []Product, SizeAdvice, ShippingEstimate or
// CancelPreview) when OK is true.
type ToolResult struct {
	CallID  string     `json:"call_id"`
	Tool    string     `json:"tool"`
	OK      bool       `json:"ok"`
	Payload any        `json:"payload,omitempty"`
	Error   *ToolError `json:"error,omitempty"`
}

// VerdictStatus is the policy guard's adjudication state.
type VerdictStatus string

const (
	VerdictPending  VerdictStatus = "pending"
	VerdictResolved VerdictStatus = "resolved"
)

// PolicyVerdict is the authoritative cancellation decision for one order.
type PolicyVerdict struct {
	OrderID        string        `json:"order_id"`
	Eligible       bool          `json:"eligible"`
	ElapsedMinutes int           `json:"elapsed_minutes"`
	Reason         string        `json:"reason"`
	Status         VerdictStatus `json:"status"`
	EvaluatedAt    time.Time     `json:"evaluated_at"`
	ToolEligible   *bool         `json:"tool_eligible,omitempty"`
	OverriddenTool bool          `json:"overridden_tool,omitempty"`
}

// WarningCategory groups trace warnings for downstream evaluation.
type WarningCategory string

const (
	WarningClassification WarningCategory = "classification"
	WarningToolFailure    WarningCategory = "tool_failure"
	WarningPolicyContract WarningCategory = "policy_contract_violation"
	WarningLoopExhausted  WarningCategory = "loop_exhausted"
	WarningUpstream       WarningCategory = "upstream_failure"
	WarningInterrupted    WarningCategory = "interrupted"
)

// Warning is a non-fatal anomaly recorded in the trace.
type Warning struct {
	Category WarningCategory `json:"category"`
	Detail   string          `json:"detail"`
}

// Trace is the per-request audit artifact. Its shape is stable for
// downstream evaluation tooling.
type Trace struct {
	RequestID     string         `json:"request_id"`
	Intent        Intent         `json:"intent"`
	IntentSource  string         `json:"intent_source"`
	ToolCalls     []ToolCall     `json:"tool_calls"`
	ToolResults   []ToolResult   `json:"tool_results"`
	PolicyVerdict *PolicyVerdict `json:"policy_verdict,omitempty"`
	Warnings      []Warning      `json:"warnings,omitempty"`
	Iterations    int            `json:"iterations"`
	FinalReply    string         `json:"final_reply"`
	CreatedAt     time.Time      `json:"created_at"`
}
