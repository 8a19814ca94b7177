// Package policy holds the order-cancellation rule and the guard that
// enforces it over a request's tool activity.
package policy

import (
	"fmt"
	"time"
)

// CancellationWindow is how long after creation an order may be cancelled.
// The boundary itself is outside the window.
const CancellationWindow = 60 * time.Minute

// Rule is the customer-facing statement of the cancellation policy.
const Rule = "Orders can only be canceled within 60 minutes of placement."

// Decision is the outcome of evaluating one order against the window.
type Decision struct {
	Eligible       bool
	Elapsed        time.Duration
	ElapsedMinutes int
	Reason         string
}

// Evaluate decides cancellation eligibility from the order's creation time
// and the evaluation instant. Both are compared as UTC instants.
func Evaluate(createdAt, instant time.Time) Decision {
	elapsed := instant.UTC().Sub(createdAt.UTC())
	d := Decision{
		Elapsed:        elapsed,
		ElapsedMinutes: int(elapsed / time.Minute),
	}
	switch {
	case elapsed < 0:
		d.Reason = "order creation time is after the evaluation instant"
	case elapsed < CancellationWindow:
		d.Eligible = true
		d.Reason = fmt.Sprintf("order placed %d minutes ago, within the 60-minute cancellation window", d.ElapsedMinutes)
	default:
		d.Reason = fmt.Sprintf("order placed %d minutes ago, outside the 60-minute cancellation window", d.ElapsedMinutes)
	}
	return d
}
