package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"commerce-agent/internal/domain"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestEvaluate_Boundaries(t *testing.T) {
	created := time.Date(2025, 9, 7, 11, 55, 0, 0, time.UTC)
	cases := []struct {
		name     string
		elapsed  time.Duration
		eligible bool
		minutes  int
	}{
		{name: "thirty seconds", elapsed: 30 * time.Second, eligible: true, minutes: 0},
		{name: "59m59s", elapsed: 59*time.Minute + 59*time.Second, eligible: true, minutes: 59},
		{name: "exactly 60m", elapsed: 60 * time.Minute, eligible: false, minutes: 60},
		{name: "60m1s", elapsed: 60*time.Minute + time.Second, eligible: false, minutes: 60},
		{name: "23 hours", elapsed: 23 * time.Hour, eligible: false, minutes: 1380},
		{name: "future order", elapsed: -5 * time.Minute, eligible: false, minutes: -5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(created, created.Add(tc.elapsed))
			require.Equal(t, tc.eligible, d.Eligible)
			require.Equal(t, tc.minutes, d.ElapsedMinutes)
			require.Equal(t, tc.elapsed < CancellationWindow && tc.elapsed >= 0, d.Eligible)
			require.NotEmpty(t, d.Reason)
		})
	}
}

func TestEvaluate_ScenarioThirtyFiveMinutes(t *testing.T) {
	d := Evaluate(mustTime(t, "2025-09-07T11:55:00Z"), mustTime(t, "2025-09-07T12:30:00Z"))
	require.True(t, d.Eligible)
	require.Equal(t, 35, d.ElapsedMinutes)
}

func TestEvaluate_IgnoresZoneOffsets(t *testing.T) {
	ist := time.FixedZone("IST", 5*60*60+30*60)
	created := time.Date(2025, 9, 7, 17, 25, 0, 0, ist) // 11:55Z
	d := Evaluate(created, mustTime(t, "2025-09-07T12:54:00Z"))
	require.True(t, d.Eligible)
	require.Equal(t, 59, d.ElapsedMinutes)
}

func lookupCall(id, orderID string) domain.ToolCall {
	return domain.ToolCall{ID: id, Name: "order_lookup", Arguments: map[string]any{"order_id": orderID, "email": "alex@example.com"}}
}

func cancelCall(id, orderID string) domain.ToolCall {
	return domain.ToolCall{ID: id, Name: "order_cancel", Arguments: map[string]any{"order_id": orderID}}
}

func TestGuard_NoCancellation(t *testing.T) {
	calls := []domain.ToolCall{lookupCall("c1", "A1003")}
	results := []domain.ToolResult{{CallID: "c1", Tool: "order_lookup", OK: true, Payload: domain.Order{OrderID: "A1003"}}}
	v, warnings := Guard{}.Adjudicate(calls, results, time.Now())
	require.Nil(t, v)
	require.Empty(t, warnings)
}

func TestGuard_ResolvesAndOverridesTool(t *testing.T) {
	created := mustTime(t, "2025-09-06T13:05:00Z")
	instant := created.Add(23 * time.Hour)
	calls := []domain.ToolCall{lookupCall("c1", "A1002"), cancelCall("c2", "A1002")}
	results := []domain.ToolResult{
		{CallID: "c1", Tool: "order_lookup", OK: true, Payload: domain.Order{OrderID: "A1002", CreatedAt: created}},
		// A tool that wrongly claims eligibility must be overridden.
		{CallID: "c2", Tool: "order_cancel", OK: true, Payload: domain.CancelPreview{OrderID: "A1002", Eligible: true}},
	}

	v, warnings := Guard{}.Adjudicate(calls, results, instant)
	require.Empty(t, warnings)
	require.NotNil(t, v)
	require.Equal(t, domain.VerdictResolved, v.Status)
	require.False(t, v.Eligible)
	require.Equal(t, 1380, v.ElapsedMinutes)
	require.True(t, v.OverriddenTool)
	require.NotNil(t, v.ToolEligible)
	require.True(t, *v.ToolEligible)
}

func TestGuard_FailsClosedWithoutLookup(t *testing.T) {
	created := mustTime(t, "2025-09-07T11:55:00Z")
	cases := []struct {
		name    string
		calls   []domain.ToolCall
		results []domain.ToolResult
	}{
		{
			name:  "no lookup",
			calls: []domain.ToolCall{cancelCall("c1", "A1003")},
			results: []domain.ToolResult{
				{CallID: "c1", Tool: "order_cancel", OK: true, Payload: domain.CancelPreview{OrderID: "A1003", Eligible: true}},
			},
		},
		{
			name:  "failed lookup",
			calls: []domain.ToolCall{lookupCall("c1", "A1003"), cancelCall("c2", "A1003")},
			results: []domain.ToolResult{
				{CallID: "c1", Tool: "order_lookup", OK: false, Error: &domain.ToolError{Code: "not_found"}},
				{CallID: "c2", Tool: "order_cancel", OK: true, Payload: domain.CancelPreview{OrderID: "A1003", Eligible: true}},
			},
		},
		{
			name:  "lookup for another order",
			calls: []domain.ToolCall{lookupCall("c1", "A1001"), cancelCall("c2", "A1003")},
			results: []domain.ToolResult{
				{CallID: "c1", Tool: "order_lookup", OK: true, Payload: domain.Order{OrderID: "A1001", CreatedAt: created}},
				{CallID: "c2", Tool: "order_cancel", OK: true, Payload: domain.CancelPreview{OrderID: "A1003", Eligible: true}},
			},
		},
		{
			name:  "lookup after cancel",
			calls: []domain.ToolCall{cancelCall("c1", "A1003"), lookupCall("c2", "A1003")},
			results: []domain.ToolResult{
				{CallID: "c1", Tool: "order_cancel", OK: true, Payload: domain.CancelPreview{OrderID: "A1003", Eligible: true}},
				{CallID: "c2", Tool: "order_lookup", OK: true, Payload: domain.Order{OrderID: "A1003", CreatedAt: created}},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, warnings := Guard{}.Adjudicate(tc.calls, tc.results, created.Add(time.Minute))
			require.NotNil(t, v)
			require.False(t, v.Eligible)
			require.Equal(t, domain.VerdictPending, v.Status)
			require.Len(t, warnings, 1)
			require.Equal(t, domain.WarningPolicyContract, warnings[0].Category)
		})
	}
}

func TestGuard_LatestCancellationWins(t *testing.T) {
	created := mustTime(t, "2025-09-07T11:55:00Z")
	calls := []domain.ToolCall{
		lookupCall("c1", "A1003"),
		cancelCall("c2", "A1003"),
		cancelCall("c3", "A1003"),
	}
	results := []domain.ToolResult{
		{CallID: "c1", Tool: "order_lookup", OK: true, Payload: domain.Order{OrderID: "A1003", CreatedAt: created}},
		{CallID: "c2", Tool: "order_cancel", OK: false, Error: &domain.ToolError{Code: "invalid_arguments"}},
		{CallID: "c3", Tool: "order_cancel", OK: true, Payload: domain.CancelPreview{OrderID: "A1003", Eligible: true}},
	}
	v, _ := Guard{}.Adjudicate(calls, results, mustTime(t, "2025-09-07T12:30:00Z"))
	require.NotNil(t, v)
	require.True(t, v.Eligible)
	require.Equal(t, 35, v.ElapsedMinutes)
	require.False(t, v.OverriddenTool)
}
