// Package handler adapts API Gateway proxy events to the ask use case.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"commerce-agent/internal/domain"
	"commerce-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type AskUseCase interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
}

type askRequest struct {
	Message           string               `json:"message"`
	History           []domain.ChatMessage `json:"history,omitempty"`
	EvaluationInstant string               `json:"evaluationInstant,omitempty"`
}

type askResponse struct {
	Reply     string        `json:"reply"`
	RequestID string        `json:"requestId"`
	Trace     *domain.Trace `json:"trace,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type Handler struct {
	uc     AskUseCase
	logger *slog.Logger
}

func NewHandler(uc AskUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, logger: slog.Default()}, nil
}

// Handle serves POST /ask. Add ?trace=true to include the execution trace in
// the response body.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.logger.With("correlation_id", correlationID)

	var body askRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		log.WarnContext(ctx, "invalid request body", "err", err)
		return h.errorResponse(correlationID, http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid_body"), nil
	}

	out, err := h.uc.Ask(ctx, usecase.AskInput{
		Message:           body.Message,
		History:           body.History,
		EvaluationInstant: body.EvaluationInstant,
	})
	if err != nil {
		code, reason := usecase.CodeOf(err)
		status := statusFor(code)
		if status >= http.StatusInternalServerError {
			log.ErrorContext(ctx, "ask failed", "code", code, "reason", reason, "err", err)
		} else {
			log.WarnContext(ctx, "ask rejected", "code", code, "reason", reason)
		}
		return h.errorResponse(correlationID, status, code, reason), nil
	}

	resp := askResponse{Reply: out.Reply, RequestID: out.RequestID}
	if strings.EqualFold(req.QueryStringParameters["trace"], "true") {
		resp.Trace = &out.Trace
	}
	log.InfoContext(ctx, "ask complete", "request_id", out.RequestID, "intent", out.Trace.Intent, "status", http.StatusOK)
	return jsonResponse(correlationID, http.StatusOK, resp), nil
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput, usecase.ErrorFlaggedMessage:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) errorResponse(correlationID string, status int, code usecase.ErrorCode, reason string) events.APIGatewayProxyResponse {
	return jsonResponse(correlationID, status, errorResponse{Error: string(code), Reason: reason})
}

func jsonResponse(correlationID string, status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}

// headerValue looks a header up case-insensitively; API Gateway preserves
// the client's casing.
func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
