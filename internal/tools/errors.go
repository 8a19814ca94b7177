package tools

import "fmt"

const (
	CodeNotFound         = "not_found"
	CodeInvalidZip       = "invalid_zip"
	CodeInvalidArguments = "invalid_arguments"
	CodeUnknownTool      = "unknown_tool"
	CodeUnavailable      = "store_unavailable"
)

// Error is a tool-level failure reported back to the reasoning loop.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("tools: %s: %s", e.Code, e.Message)
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
