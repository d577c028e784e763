// Package web serves the chat page and its JSON/SSE API for local and container use.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"faq-agent/internal/domain"
	"faq-agent/internal/observability"
	"faq-agent/internal/usecase"
)

const CorrelationHeader = "X-Correlation-Id"

// AskService is the chat behaviour the server exposes.
type AskService interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
	AskStream(ctx context.Context, in usecase.AskInput, onChunk func(string)) (usecase.AskOutput, error)
	NewSession(ctx context.Context) (domain.Session, error)
	Transcript(ctx context.Context, sessionID string) ([]domain.Turn, error)
	EndSession(ctx context.Context, sessionID string) error
}

type Server struct {
	svc  AskService
	page PageData
}

func NewServer(svc AskService, page PageData) (*Server, error) {
	if svc == nil {
		return nil, errors.New("web: ask service must not be nil")
	}
	page.Streaming = true
	return &Server{svc: svc, page: page}, nil
}

// AskRequest is the JSON body of POST /api/ask.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

// AskResponse is a completed turn as returned to the chat page.
type AskResponse struct {
	SessionID   string            `json:"sessionId"`
	Question    string            `json:"question"`
	Answer      string            `json:"answer"`
	Citations   []domain.Citation `json:"citations"`
	Grounded    bool              `json:"grounded"`
	TraceEvents int               `json:"traceEvents"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// TranscriptResponse is the body of GET /api/sessions/{id}/turns.
type TranscriptResponse struct {
	SessionID string        `json:"sessionId"`
	Turns     []domain.Turn `json:"turns"`
}

// NewAskResponse flattens a use case result for the wire.
func NewAskResponse(out usecase.AskOutput) AskResponse {
	citations := out.Turn.Citations
	if citations == nil {
		citations = []domain.Citation{}
	}
	return AskResponse{
		SessionID:   out.SessionID,
		Question:    out.Turn.Question,
		Answer:      out.Turn.Answer,
		Citations:   citations,
		Grounded:    out.Turn.Grounded(),
		TraceEvents: out.Turn.TraceEvents,
		CreatedAt:   out.Turn.CreatedAt,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(correlationID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/sessions", s.handleCreateSession)
		api.Get("/sessions/{sessionID}/turns", s.handleTranscript)
		api.Delete("/sessions/{sessionID}", s.handleEndSession)
		api.Post("/ask", s.handleAsk)
		api.Get("/ask/stream", s.handleAskStream)
	})
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderIndex(w, s.page); err != nil {
		observability.LoggerFromContext(r.Context()).Error("failed to render index", "err", err)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.NewSession(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	turns, err := s.svc.Transcript(r.Context(), sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, TranscriptResponse{SessionID: sessionID, Turns: turns})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorBody{Error: string(usecase.ErrorInvalidInput), Message: "invalid request body"})
		return
	}
	out, err := s.svc.Ask(r.Context(), usecase.AskInput{Question: req.Question, SessionID: req.SessionID})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, NewAskResponse(out))
}

// handleAskStream answers over Server-Sent Events: "session" once the session id is
// known, "delta" per text chunk, then exactly one of "turn" or "failure".
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSON(w, http.StatusInternalServerError, ErrorBody{Error: string(usecase.ErrorInternal), Message: "streaming unsupported"})
		return
	}
	ctx := r.Context()
	question := r.URL.Query().Get("question")
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if sessionID == "" && strings.TrimSpace(question) != "" {
		session, err := s.svc.NewSession(ctx)
		if err != nil {
			_, body := ErrorStatus(err)
			sendSSEEvent(w, flusher, "failure", body)
			return
		}
		sessionID = session.ID
	}
	if sessionID != "" {
		sendSSEEvent(w, flusher, "session", map[string]string{"sessionId": sessionID})
	}

	out, err := s.svc.AskStream(ctx, usecase.AskInput{Question: question, SessionID: sessionID}, func(chunk string) {
		sendSSEEvent(w, flusher, "delta", map[string]string{"content": chunk})
	})
	if err != nil {
		status, body := ErrorStatus(err)
		observability.LoggerFromContext(ctx).Warn("ask stream failed", "status", status, "code", body.Error)
		sendSSEEvent(w, flusher, "failure", body)
		return
	}
	sendSSEEvent(w, flusher, "turn", NewAskResponse(out))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := ErrorStatus(err)
	log := observability.LoggerFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "code", body.Error, "err", err)
	} else {
		log.Info("request rejected", "status", status, "code", body.Error, "err", err)
	}
	respondJSON(w, status, body)
}
