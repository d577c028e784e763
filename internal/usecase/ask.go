package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"faq-agent/internal/domain"
	"faq-agent/internal/observability"
)

const (
	defaultMaxQuestion     = 2000
	defaultTranscriptLimit = 50
	sessionIDPrefix        = "web-"
)

// sessionIDPattern is the session id shape accepted by Bedrock agents.
var sessionIDPattern = regexp.MustCompile(`^[0-9a-zA-Z._:-]{2,100}$`)

type AgentClient interface {
	Invoke(ctx context.Context, req domain.AgentRequest, onChunk func(string)) (domain.AgentResponse, error)
}

type CitationFormatter interface {
	Format(events []domain.TraceEvent) []domain.Citation
}

type TranscriptStore interface {
	CreateSession(ctx context.Context, session domain.Session) error
	AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error
	Transcript(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type AskService struct {
	agent           AgentClient
	citations       CitationFormatter
	store           TranscriptStore
	maxQuestionLen  int
	transcriptLimit int
	timeout         time.Duration

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}
}

type AskInput struct {
	Question  string
	SessionID string
}

type AskOutput struct {
	SessionID string
	Turn      domain.Turn
}

func NewAskService(agent AgentClient, citations CitationFormatter, store TranscriptStore, maxQuestionLen, transcriptLimit int) (*AskService, error) {
	if agent == nil {
		return nil, errors.New("usecase: agent client must not be nil")
	}
	if citations == nil {
		return nil, errors.New("usecase: citation formatter must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: transcript store must not be nil")
	}
	if maxQuestionLen <= 0 {
		maxQuestionLen = defaultMaxQuestion
	}
	if transcriptLimit <= 0 {
		transcriptLimit = defaultTranscriptLimit
	}
	return &AskService{
		agent:           agent,
		citations:       citations,
		store:           store,
		maxQuestionLen:  maxQuestionLen,
		transcriptLimit: transcriptLimit,
		inFlight:        make(map[string]struct{}),
	}, nil
}

// WithTimeout bounds every agent call. Zero leaves the caller's context as is.
func (s *AskService) WithTimeout(d time.Duration) *AskService {
	s.timeout = d
	return s
}

// NewSession starts a session. Its id is reused for every later turn.
func (s *AskService) NewSession(ctx context.Context) (domain.Session, error) {
	session := domain.Session{ID: newSessionID(), CreatedAt: now()}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.Session{}, newError(ErrorInternal, "session_create_error", err)
	}
	return session, nil
}

// EndSession discards the session transcript.
func (s *AskService) EndSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if !sessionIDPattern.MatchString(sessionID) {
		return newError(ErrorInvalidInput, "invalid_session_id", nil)
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return newError(ErrorInternal, "session_delete_error", err)
	}
	return nil
}

// Transcript returns the session turns in the order they were appended.
func (s *AskService) Transcript(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if !sessionIDPattern.MatchString(sessionID) {
		return nil, newError(ErrorInvalidInput, "invalid_session_id", nil)
	}
	turns, err := s.store.Transcript(ctx, sessionID, s.transcriptLimit)
	if err != nil {
		return nil, newError(ErrorInternal, "transcript_read_error", err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return turns, nil
}

func (s *AskService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	return s.AskStream(ctx, in, nil)
}

// AskStream answers one question. onChunk, when not nil, receives answer text as it
// streams in. A failed call never appends a turn.
func (s *AskService) AskStream(ctx context.Context, in AskInput, onChunk func(string)) (AskOutput, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return AskOutput{}, newError(ErrorInvalidInput, "empty_question", nil)
	}
	if utf8.RuneCountInString(question) > s.maxQuestionLen {
		return AskOutput{}, newError(ErrorInvalidInput, "question_too_long", nil)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		session, err := s.NewSession(ctx)
		if err != nil {
			return AskOutput{}, err
		}
		sessionID = session.ID
	} else if !sessionIDPattern.MatchString(sessionID) {
		return AskOutput{}, newError(ErrorInvalidInput, "invalid_session_id", nil)
	}

	if !s.acquire(sessionID) {
		return AskOutput{}, newError(ErrorSessionBusy, "request_in_flight", nil)
	}
	defer s.release(sessionID)

	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := s.agent.Invoke(callCtx, domain.AgentRequest{SessionID: sessionID, Question: question}, onChunk)
	if err != nil {
		uerr := classifyAgentError(err)
		log.Warn("agent call failed", "code", uerr.Code, "reason", uerr.Reason, "err", err)
		return AskOutput{}, uerr
	}
	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		return AskOutput{}, newError(ErrorUpstream, "empty_answer", nil)
	}

	turn := domain.Turn{
		Question:    question,
		Answer:      answer,
		Citations:   s.citations.Format(resp.Trace),
		TraceEvents: resp.TraceEvents,
		CreatedAt:   now(),
	}
	if turn.Citations == nil {
		turn.Citations = []domain.Citation{}
	}
	if err := s.store.AppendTurn(ctx, sessionID, turn); err != nil {
		return AskOutput{}, newError(ErrorInternal, "transcript_write_error", err)
	}

	log.Info("agent answered",
		"trace_events", resp.TraceEvents,
		"citations", len(turn.Citations),
		"grounded", turn.Grounded(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return AskOutput{SessionID: sessionID, Turn: turn}, nil
}

func (s *AskService) acquire(sessionID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = struct{}{}
	return true
}

func (s *AskService) release(sessionID string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, sessionID)
	s.inFlightMu.Unlock()
}

var newSessionID = func() string {
	return sessionIDPrefix + uuid.NewString()
}

var now = func() time.Time {
	return time.Now().UTC()
}
