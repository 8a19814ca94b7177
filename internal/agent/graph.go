// Package agent runs one customer request through the orchestration graph:
// router, reasoning loop, tool dispatch, policy guard and responder.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"commerce-agent/internal/domain"
	"commerce-agent/internal/policy"
)

const (
	DefaultMaxIterations = 5
	timeLayout           = time.RFC3339
)

// Node names, as they appear in logs and metrics.
const (
	NodeRouter    = "router"
	NodeReason    = "reason"
	NodeTools     = "tools"
	NodeGuard     = "policy_guard"
	NodeResponder = "responder"
	nodeEnd       = ""
)

// Model is the language-model capability the graph needs.
type Model interface {
	Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelReply, error)
}

// Dispatcher executes tool calls against the closed tool catalog.
type Dispatcher interface {
	Specs() []domain.ToolSpec
	Dispatch(ctx context.Context, call domain.ToolCall) domain.ToolResult
}

// Observer receives graph events. Implementations must be safe for
// concurrent use across requests.
type Observer interface {
	NodeVisited(node string)
	ToolDispatched(tool string, ok bool)
	RequestFinished(trace domain.Trace, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) NodeVisited(string)                          {}
func (nopObserver) ToolDispatched(string, bool)                 {}
func (nopObserver) RequestFinished(domain.Trace, time.Duration) {}

// Config configures a Graph.
type Config struct {
	ModelName     string
	PinnedPrompt  string
	MaxIterations int
	Temperature   *float64
	Observer      Observer
	Logger        *slog.Logger
}

// Graph is safe for concurrent use; each Run owns its State.
type Graph struct {
	model         Model
	tools         Dispatcher
	guard         policy.Guard
	modelName     string
	pinnedPrompt  string
	maxIterations int
	temperature   *float64
	observer      Observer
	logger        *slog.Logger
	now           func() time.Time
}

func New(model Model, tools Dispatcher, cfg Config) (*Graph, error) {
	if model == nil {
		return nil, errors.New("agent: model must not be nil")
	}
	if tools == nil {
		return nil, errors.New("agent: tool dispatcher must not be nil")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("agent: model name must not be empty")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Graph{
		model:         model,
		tools:         tools,
		modelName:     cfg.ModelName,
		pinnedPrompt:  cfg.PinnedPrompt,
		maxIterations: cfg.MaxIterations,
		temperature:   cfg.Temperature,
		observer:      cfg.Observer,
		logger:        cfg.Logger,
		now:           time.Now,
	}, nil
}

// Run drives s from the router to the responder and returns the final
// state and its trace. Model and tool failures are folded into the trace.
// Run fails only when the context is done or the step limit is hit, and even
// then it returns the partial trace with an interrupted warning.
func (g *Graph) Run(ctx context.Context, s State) (State, domain.Trace, error) {
	started := g.now()
	if s.Instant.IsZero() {
		s.Instant = started.UTC()
	}
	log := g.logger.With("request_id", s.RequestID)

	// Each reasoning iteration visits at most reason and tools, so this
	// bound is never reached by a well-formed run.
	maxSteps := 2*(g.maxIterations+2) + 3
	node := NodeRouter
	for step := 0; node != nodeEnd; step++ {
		var stop error
		switch {
		case ctx.Err() != nil:
			stop = fmt.Errorf("agent: run interrupted at %s: %w", node, ctx.Err())
		case step >= maxSteps:
			stop = fmt.Errorf("agent: step limit exceeded at %s", node)
		}
		if stop != nil {
			final, trace := g.abort(s, started, stop)
			log.WarnContext(ctx, "request interrupted", "node", node, "err", stop)
			return final, trace, stop
		}
		g.observer.NodeVisited(node)
		var next string
		s, next = g.step(ctx, node, s)
		log.DebugContext(ctx, "graph transition", "from", node, "to", next, "iterations", s.Iterations)
		node = next
	}

	trace := s.Trace(started)
	g.observer.RequestFinished(trace, g.now().Sub(started))
	log.InfoContext(ctx, "request complete",
		"intent", trace.Intent,
		"intent_source", trace.IntentSource,
		"tool_calls", len(trace.ToolCalls),
		"warnings", len(trace.Warnings),
		"iterations", trace.Iterations,
	)
	return s, trace, nil
}

// abort closes out a run that cannot reach the responder. The intent is
// never left unset and any dispatched cancellation still gets a verdict.
func (g *Graph) abort(s State, started time.Time, cause error) (State, domain.Trace) {
	n := s.clone()
	n.Pending = nil
	if n.Intent == "" {
		n.Intent, n.IntentSource = domain.IntentOther, SourceFallback
	}
	if n.Verdict == nil && n.hasDispatched(toolOrderCancel) {
		var warnings []domain.Warning
		n.Verdict, warnings = g.guard.Adjudicate(n.ToolCalls, n.ToolResults, n.Instant)
		n = n.withWarnings(warnings...)
	}
	n = n.withWarnings(domain.Warning{Category: domain.WarningInterrupted, Detail: cause.Error()})
	n.Reply = interruptedNotice
	trace := n.Trace(started)
	g.observer.RequestFinished(trace, g.now().Sub(started))
	return n, trace
}

func (g *Graph) step(ctx context.Context, node string, s State) (State, string) {
	switch node {
	case NodeRouter:
		s = g.route(ctx, s)
		if s.Intent == domain.IntentOther {
			return s, NodeResponder
		}
		return s, NodeReason
	case NodeReason:
		s = g.reason(ctx, s)
		if len(s.Pending) > 0 {
			return s, NodeTools
		}
		return s, finishNode(s)
	case NodeTools:
		batch := s.Pending
		s = g.dispatch(ctx, s)
		cancelled := hasCancel(batch)
		if s.Exit != ExitNone {
			return s, finishNode(s)
		}
		if cancelled && len(unmatchedLookups(s.ToolCalls, s.ToolResults, nil)) == 0 {
			return s, NodeGuard
		}
		return s, NodeReason
	case NodeGuard:
		n := s.clone()
		var warnings []domain.Warning
		n.Verdict, warnings = g.guard.Adjudicate(s.ToolCalls, s.ToolResults, s.Instant)
		return n.withWarnings(warnings...), NodeResponder
	case NodeResponder:
		n := s.clone()
		n.Reply = respond(s)
		return n, nodeEnd
	}
	panic("agent: unknown node " + node)
}

// finishNode leaves the loop, passing through the guard whenever a
// cancellation was ever dispatched.
func finishNode(s State) string {
	if s.hasDispatched(toolOrderCancel) {
		return NodeGuard
	}
	return NodeResponder
}

func hasCancel(calls []domain.ToolCall) bool {
	for _, c := range calls {
		if c.Name == toolOrderCancel {
			return true
		}
	}
	return false
}
