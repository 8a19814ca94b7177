package usecase

import (
	"errors"
	"fmt"
)

// ErrorCode is the coarse failure class a transport maps to a status.
type ErrorCode string

const (
	ErrorInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrorFlaggedMessage ErrorCode = "FLAGGED_MESSAGE"
	ErrorRateLimited    ErrorCode = "RATE_LIMITED"
	ErrorUpstream       ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal       ErrorCode = "INTERNAL_ERROR"
)

// Reasons reported alongside a code. They are stable and safe to return to
// callers.
const (
	ReasonEmptyMessage          = "empty_message"
	ReasonMessageTooLong        = "message_too_long"
	ReasonInvalidHistory        = "invalid_history"
	ReasonInvalidInstant        = "invalid_evaluation_instant"
	ReasonConfigLoad            = "ssm_load_error"
	ReasonModerationRateLimited = "moderation_rate_limited"
	ReasonModerationUnavailable = "moderation_error"
	ReasonModerationFlagged     = "moderation_flagged"
	ReasonGraphFailure          = "graph_error"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("ask %s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("ask %s: %s: %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CodeOf reports the code and reason carried by err. Errors that did not
// come from this package are internal.
func CodeOf(err error) (ErrorCode, string) {
	var ucErr *Error
	if errors.As(err, &ucErr) {
		return ucErr.Code, ucErr.Reason
	}
	return ErrorInternal, "unexpected_error"
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
