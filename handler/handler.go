// Package handler adapts API Gateway proxy events to the ask use case.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"faq-agent/internal/domain"
	"faq-agent/internal/observability"
	"faq-agent/internal/usecase"
	"faq-agent/internal/web"
)

// UseCase is the subset of the ask service the Lambda surface calls.
type UseCase interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
	NewSession(ctx context.Context) (domain.Session, error)
	Transcript(ctx context.Context, sessionID string) ([]domain.Turn, error)
	EndSession(ctx context.Context, sessionID string) error
}

type Handler struct {
	uc   UseCase
	page web.PageData
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

type askResponse = web.AskResponse

type errorResponse = web.ErrorBody

func NewHandler(uc UseCase, page web.PageData) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	page.Streaming = false
	return &Handler{uc: uc, page: page}, nil
}

// Handle routes a proxy request. Transport failures are reported in the response,
// so the returned error is always nil.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, web.CorrelationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = observability.WithRequestID(ctx, correlationID)
	log := observability.LoggerFromContext(ctx)

	path := strings.TrimSuffix(req.Path, "/")
	method := req.HTTPMethod

	var resp events.APIGatewayProxyResponse
	switch {
	case method == http.MethodGet && path == "":
		resp = h.index()
	case method == http.MethodPost && path == "/api/ask":
		resp = h.ask(ctx, req.Body)
	case method == http.MethodPost && path == "/api/sessions":
		resp = h.createSession(ctx)
	case method == http.MethodGet && strings.HasPrefix(path, "/api/sessions/") && strings.HasSuffix(path, "/turns"):
		resp = h.transcript(ctx, strings.TrimSuffix(strings.TrimPrefix(path, "/api/sessions/"), "/turns"))
	case method == http.MethodDelete && strings.HasPrefix(path, "/api/sessions/"):
		resp = h.endSession(ctx, strings.TrimPrefix(path, "/api/sessions/"))
	default:
		resp = jsonResponse(http.StatusNotFound, errorResponse{Error: "NOT_FOUND", Message: "Not found."})
	}

	resp.Headers[web.CorrelationHeader] = correlationID
	log.Info("request handled", "method", method, "path", req.Path, "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) index() events.APIGatewayProxyResponse {
	var buf bytes.Buffer
	if err := web.RenderIndex(&buf, h.page); err != nil {
		slog.Error("failed to render index", "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Message: "Something went wrong on our side."})
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
		Body:       buf.String(),
	}
}

func (h *Handler) ask(ctx context.Context, body string) events.APIGatewayProxyResponse {
	var req askRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "invalid request body"})
	}
	out, err := h.uc.Ask(ctx, usecase.AskInput{Question: req.Question, SessionID: req.SessionID})
	if err != nil {
		return errorResult(ctx, err)
	}
	return jsonResponse(http.StatusOK, web.NewAskResponse(out))
}

func (h *Handler) createSession(ctx context.Context) events.APIGatewayProxyResponse {
	session, err := h.uc.NewSession(ctx)
	if err != nil {
		return errorResult(ctx, err)
	}
	return jsonResponse(http.StatusCreated, session)
}

func (h *Handler) transcript(ctx context.Context, sessionID string) events.APIGatewayProxyResponse {
	turns, err := h.uc.Transcript(ctx, sessionID)
	if err != nil {
		return errorResult(ctx, err)
	}
	return jsonResponse(http.StatusOK, web.TranscriptResponse{SessionID: sessionID, Turns: turns})
}

func (h *Handler) endSession(ctx context.Context, sessionID string) events.APIGatewayProxyResponse {
	if err := h.uc.EndSession(ctx, sessionID); err != nil {
		return errorResult(ctx, err)
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: map[string]string{}}
}

func errorResult(ctx context.Context, err error) events.APIGatewayProxyResponse {
	status, body := web.ErrorStatus(err)
	log := observability.LoggerFromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "code", body.Error, "err", err)
	} else {
		log.Info("request rejected", "status", status, "code", body.Error, "err", err)
	}
	return jsonResponse(status, body)
}

func jsonResponse(status int, payload any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode response", "err", err)
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR","message":"Something went wrong on our side."}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
