package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"commerce-agent/internal/agent"
	"commerce-agent/internal/domain"
	"commerce-agent/internal/integrations/paramstore"
	"commerce-agent/internal/tools"
)

const (
	defaultMaxQuestion = 500
	defaultMaxHistory  = 20
	traceSaveTimeout   = 5 * time.Second
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// LLMClient is the model capability plus the moderation pre-check.
type LLMClient interface {
	agent.Model
	Moderate(ctx context.Context, input string) (bool, error)
}

type TraceWriter interface {
	SaveTrace(ctx context.Context, trace domain.Trace) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Options tunes an AskService. Zero values select defaults.
type Options struct {
	ParamPrefix    string
	MaxQuestionLen int
	MaxHistory     int
	MaxIterations  int
	Observer       agent.Observer
	Logger         *slog.Logger
}

type AskService struct {
	params ParamGetter
	llm    LLMClient
	tools  *tools.Registry
	traces TraceWriter
	opts   Options
	now    func() time.Time

	cacheMu     sync.RWMutex
	cacheLoaded bool
	graph       *agent.Graph
}

type AskInput struct {
	Message string
	// History holds earlier user and assistant turns, oldest first.
	History []domain.ChatMessage
	// EvaluationInstant is an optional RFC 3339 instant for cancellation
	// checks. It defaults to the time of the request.
	EvaluationInstant string
}

type AskOutput struct {
	Reply     string
	RequestID string
	Trace     domain.Trace
}

func NewAskService(p ParamGetter, llm LLMClient, store tools.Store, traces TraceWriter, opts Options) (*AskService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if traces == nil {
		return nil, errors.New("usecase: trace writer must not be nil")
	}
	registry, err := tools.NewRegistry(store)
	if err != nil {
		return nil, fmt.Errorf("usecase: %w", err)
	}
	opts.ParamPrefix = strings.TrimRight(strings.TrimSpace(opts.ParamPrefix), "/")
	if opts.ParamPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if opts.MaxQuestionLen <= 0 {
		opts.MaxQuestionLen = defaultMaxQuestion
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = defaultMaxHistory
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &AskService{
		params: p,
		llm:    llm,
		tools:  registry,
		traces: traces,
		opts:   opts,
		now:    time.Now,
	}, nil
}

func (s *AskService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return AskOutput{}, newError(ErrorInvalidInput, ReasonEmptyMessage, nil)
	}
	if len(message) > s.opts.MaxQuestionLen {
		return AskOutput{}, newError(ErrorInvalidInput, ReasonMessageTooLong, nil)
	}
	history, err := normalizeHistory(in.History, s.opts.MaxHistory)
	if err != nil {
		return AskOutput{}, newError(ErrorInvalidInput, ReasonInvalidHistory, err)
	}
	instant := s.now().UTC()
	if raw := strings.TrimSpace(in.EvaluationInstant); raw != "" {
		instant, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return AskOutput{}, newError(ErrorInvalidInput, ReasonInvalidInstant, err)
		}
	}

	if err := s.ensureConfig(ctx); err != nil {
		return AskOutput{}, newError(ErrorInternal, ReasonConfigLoad, err)
	}

	flagged, err := s.llm.Moderate(ctx, message)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return AskOutput{}, newError(ErrorRateLimited, ReasonModerationRateLimited, err)
		}
		return AskOutput{}, newError(ErrorUpstream, ReasonModerationUnavailable, err)
	}
	if flagged {
		return AskOutput{}, newError(ErrorFlaggedMessage, ReasonModerationFlagged, nil)
	}

	requestID := newUUID()
	history = append(history, domain.ChatMessage{Role: domain.RoleUser, Content: message})
	final, trace, runErr := s.currentGraph().Run(ctx, agent.NewState(requestID, instant, history))
	s.saveTrace(ctx, trace)
	if runErr != nil {
		return AskOutput{}, newError(ErrorInternal, ReasonGraphFailure, runErr)
	}

	return AskOutput{
		Reply:     final.Reply,
		RequestID: requestID,
		Trace:     trace,
	}, nil
}

// normalizeHistory keeps the last limit non-empty user/assistant turns.
// saveTrace persists trace even when ctx is already done. A lost trace is
// logged, not surfaced.
func (s *AskService) saveTrace(ctx context.Context, trace domain.Trace) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), traceSaveTimeout)
	defer cancel()
	if err := s.traces.SaveTrace(saveCtx, trace); err != nil {
		s.opts.Logger.WarnContext(ctx, "trace persistence failed", "request_id", trace.RequestID, "err", err)
	}
}

func normalizeHistory(in []domain.ChatMessage, limit int) ([]domain.ChatMessage, error) {
	out := make([]domain.ChatMessage, 0, len(in)+1)
	for i, m := range in {
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant:
		default:
			return nil, fmt.Errorf("history[%d]: unsupported role %q", i, m.Role)
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		out = append(out, domain.ChatMessage{Role: m.Role, Content: content})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *AskService) currentGraph() *agent.Graph {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.graph
}

func (s *AskService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	settings, err := paramstore.LoadSettings(ctx, s.params, s.opts.ParamPrefix)
	if err != nil {
		return err
	}
	g, err := agent.New(s.llm, s.tools, agent.Config{
		ModelName:     settings.Model,
		PinnedPrompt:  settings.PinnedPrompt,
		MaxIterations: s.opts.MaxIterations,
		Observer:      s.opts.Observer,
		Logger:        s.opts.Logger,
	})
	if err != nil {
		return fmt.Errorf("usecase: build graph: %w", err)
	}

	s.graph = g
	s.cacheLoaded = true
	return nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
