package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"faq-agent/internal/domain"
	"faq-agent/internal/usecase"
	"faq-agent/internal/web"
)

type stubUseCase struct {
	out     usecase.AskOutput
	err     error
	in      usecase.AskInput
	session domain.Session
	turns   []domain.Turn
	ended   string
	listed  string
}

func (s *stubUseCase) Ask(_ context.Context, in usecase.AskInput) (usecase.AskOutput, error) {
	s.in = in
	return s.out, s.err
}

func (s *stubUseCase) NewSession(context.Context) (domain.Session, error) {
	return s.session, s.err
}

func (s *stubUseCase) Transcript(_ context.Context, sessionID string) ([]domain.Turn, error) {
	s.listed = sessionID
	return s.turns, s.err
}

func (s *stubUseCase) EndSession(_ context.Context, sessionID string) error {
	s.ended = sessionID
	return s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/ask",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func mustNewHandler(t *testing.T, uc UseCase) *Handler {
	t.Helper()
	h, err := NewHandler(uc, web.PageData{Title: "Smart FAQ Assistant"})
	require.NoError(t, err)
	return h
}

func sampleTurn() domain.Turn {
	return domain.Turn{
		Question:    "What is the refund policy?",
		Answer:      "Refunds are accepted within 30 days.",
		Citations:   []domain.Citation{{DocumentID: "s3://kb/Policy-A.pdf", DocumentName: "Policy-A.pdf"}},
		TraceEvents: 2,
		CreatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, web.PageData{})
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	uc := &stubUseCase{out: usecase.AskOutput{SessionID: "web-1", Turn: sampleTurn()}}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"question":"What is the refund policy?","sessionId":"web-1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.AskInput{Question: "What is the refund policy?", SessionID: "web-1"}, uc.in)

	out := parseBody[askResponse](t, resp.Body)
	require.Equal(t, "Refunds are accepted within 30 days.", out.Answer)
	require.Equal(t, "web-1", out.SessionID)
	require.True(t, out.Grounded)
	require.Equal(t, "Policy-A.pdf", out.Citations[0].DocumentName)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_UngroundedAnswerIsNotAnError(t *testing.T) {
	turn := sampleTurn()
	turn.Citations = []domain.Citation{}
	h := mustNewHandler(t, &stubUseCase{out: usecase.AskOutput{SessionID: "web-1", Turn: turn}})

	resp, err := h.Handle(context.Background(), makeEvent(`{"question":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[askResponse](t, resp.Body)
	require.False(t, out.Grounded)
	require.NotNil(t, out.Citations)
	require.Empty(t, out.Citations)
}

func TestHandle_InvalidBody(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_question"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "session busy", err: &usecase.Error{Code: usecase.ErrorSessionBusy, Reason: "request_in_flight"}, status: http.StatusConflict, code: string(usecase.ErrorSessionBusy)},
		{name: "auth", err: &usecase.Error{Code: usecase.ErrorAuth, Reason: "agent_access_denied"}, status: http.StatusBadGateway, code: string(usecase.ErrorAuth)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "agent_throttled"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "timeout", err: &usecase.Error{Code: usecase.ErrorTimeout, Reason: "agent_timeout"}, status: http.StatusGatewayTimeout, code: string(usecase.ErrorTimeout)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "agent_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "transcript_write_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := mustNewHandler(t, &stubUseCase{err: tc.err})

			resp, err := h.Handle(context.Background(), makeEvent(`{"question":"What is the refund policy?"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
			require.NotEmpty(t, out.Message)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{out: usecase.AskOutput{SessionID: "web-1", Turn: sampleTurn()}})

	event := makeEvent(`{"question":"What is the refund policy?"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_Index(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Headers["Content-Type"], "text/html")
	require.Contains(t, resp.Body, "Smart FAQ Assistant")
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_Sessions(t *testing.T) {
	uc := &stubUseCase{
		session: domain.Session{ID: "web-9", CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		turns:   []domain.Turn{sampleTurn()},
	}
	h := mustNewHandler(t, uc)
	ctx := context.Background()

	resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/api/sessions"})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "web-9", parseBody[domain.Session](t, resp.Body).ID)

	resp, err = h.Handle(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/sessions/web-9/turns"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "web-9", uc.listed)
	transcript := parseBody[web.TranscriptResponse](t, resp.Body)
	require.Len(t, transcript.Turns, 1)

	resp, err = h.Handle(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodDelete, Path: "/api/sessions/web-9"})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "web-9", uc.ended)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_UnknownRoute(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/nope"})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
