package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"commerce-agent/handler"
	"commerce-agent/internal/metrics"
	"commerce-agent/internal/repository"
)

const catalogPath = "../../data/catalog.yaml"

// fakeLLM replays chat completions in order and never flags moderation.
type fakeLLM struct {
	mu          sync.Mutex
	completions []string
	chatCalls   int
	moderations int
}

func (f *fakeLLM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.Copy(io.Discard, r.Body)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/moderations"):
		f.moderations++
		_, _ = io.WriteString(w, `{"results":[{"flagged":false}]}`)
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		body := `{"choices":[{"index":0,"message":{"role":"assistant","content":"Done."}}]}`
		if f.chatCalls < len(f.completions) {
			body = f.completions[f.chatCalls]
		}
		f.chatCalls++
		_, _ = io.WriteString(w, body)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeLLM) counts() (chat, moderation int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls, f.moderations
}

func toolCallCompletion(id, name, args string) string {
	raw, _ := json.Marshal(args)
	return `{"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[` +
		`{"id":"` + id + `","type":"function","function":{"name":"` + name + `","arguments":` + string(raw) + `}}]}}]}`
}

func cancelScript() *fakeLLM {
	return &fakeLLM{completions: []string{
		toolCallCompletion("call_1", "order_lookup", `{"order_id":"A1003","email":"alex@example.com"}`),
		toolCallCompletion("call_2", "order_cancel", `{"order_id":"A1003"}`),
	}}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Tree(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["ask"])
	require.True(t, names["serve"])
	require.True(t, names["seed"])

	f := root.PersistentFlags()
	require.Equal(t, "data/catalog.yaml", f.Lookup("catalog").DefValue)
	require.Equal(t, "5", f.Lookup("max-iterations").DefValue)
	require.Equal(t, "text", f.Lookup("log-format").DefValue)
}

func TestAsk_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := execute(t, "ask", "--catalog", catalogPath, "--api-key", "", "hello")
	require.ErrorContains(t, err, "API key")
}

func TestAsk_InvalidLogFormat(t *testing.T) {
	_, err := execute(t, "ask", "--log-format", "xml", "hello")
	require.ErrorContains(t, err, "log-format")
}

func TestAsk_CancelWithinWindow(t *testing.T) {
	llm := cancelScript()
	srv := httptest.NewServer(llm)
	defer srv.Close()

	out, err := execute(t, "ask",
		"--catalog", catalogPath,
		"--base-url", srv.URL+"/v1",
		"--api-key", "sk-test",
		"--model", "gpt-mock",
		"--at", "2025-09-07T12:30:00Z",
		"--trace",
		"Cancel order A1003, email alex@example.com.",
	)
	require.NoError(t, err)
	require.Contains(t, out, "within our 60-minute cancellation window")
	require.Contains(t, out, `"policy_verdict"`)
	require.Contains(t, out, `"eligible": true`)
	_, moderations := llm.counts()
	require.Equal(t, 1, moderations)
}

func TestAsk_NoModerationSkipsEndpoint(t *testing.T) {
	llm := &fakeLLM{}
	srv := httptest.NewServer(llm)
	defer srv.Close()

	out, err := execute(t, "ask",
		"--catalog", catalogPath,
		"--base-url", srv.URL,
		"--api-key", "sk-test",
		"--no-moderation",
		"Can I get a discount code?",
	)
	require.NoError(t, err)
	require.Contains(t, out, "can't provide discount")
	chat, moderations := llm.counts()
	require.Zero(t, moderations)
	require.Zero(t, chat)
}

func TestAsk_RejectsInvalidInstant(t *testing.T) {
	srv := httptest.NewServer(&fakeLLM{})
	defer srv.Close()

	_, err := execute(t, "ask",
		"--catalog", catalogPath,
		"--base-url", srv.URL,
		"--api-key", "sk-test",
		"--at", "yesterday",
		"cancel order A1003",
	)
	require.ErrorContains(t, err, "invalid_evaluation_instant")
}

func TestServeMux(t *testing.T) {
	srv := httptest.NewServer(cancelScript())
	defer srv.Close()

	store, err := repository.LoadFile(catalogPath)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	opts := &rootOptions{
		catalog:       catalogPath,
		baseURL:       srv.URL,
		apiKey:        "sk-test",
		model:         "gpt-mock",
		maxIterations: 5,
	}
	svc, err := buildService(opts, store, metrics.NewRecorder(reg))
	require.NoError(t, err)
	h, err := handler.NewHandler(svc)
	require.NoError(t, err)
	mux := newServeMux(h, reg)

	body := `{"message":"cancel order A1003 for alex@example.com","evaluationInstant":"2025-09-07T12:30:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/ask?trace=true", strings.NewReader(body))
	req.Header.Set("X-Correlation-Id", "corr-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "corr-1", rec.Header().Get("X-Correlation-Id"))
	var resp struct {
		Reply     string          `json:"reply"`
		RequestID string          `json:"requestId"`
		Trace     json.RawMessage `json:"trace"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Reply, "can be cancelled")
	require.NotEmpty(t, resp.RequestID)
	require.NotEmpty(t, resp.Trace)
	require.Len(t, store.Traces(), 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "commerce_agent_requests_total")
	require.Contains(t, rec.Body.String(), "commerce_agent_policy_verdicts_total")
}
