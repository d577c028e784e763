package web

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"faq-agent/internal/usecase"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   usecase.ErrorCode
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_question"}, status: http.StatusBadRequest, code: usecase.ErrorInvalidInput},
		{name: "busy", err: &usecase.Error{Code: usecase.ErrorSessionBusy, Reason: "request_in_flight"}, status: http.StatusConflict, code: usecase.ErrorSessionBusy},
		{name: "auth", err: &usecase.Error{Code: usecase.ErrorAuth, Reason: "agent_access_denied"}, status: http.StatusBadGateway, code: usecase.ErrorAuth},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "agent_throttled"}, status: http.StatusTooManyRequests, code: usecase.ErrorRateLimited},
		{name: "network", err: &usecase.Error{Code: usecase.ErrorNetwork, Reason: "agent_unreachable"}, status: http.StatusBadGateway, code: usecase.ErrorNetwork},
		{name: "timeout", err: &usecase.Error{Code: usecase.ErrorTimeout, Reason: "agent_timeout"}, status: http.StatusGatewayTimeout, code: usecase.ErrorTimeout},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "agent_error"}, status: http.StatusBadGateway, code: usecase.ErrorUpstream},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "transcript_write_error"}, status: http.StatusInternalServerError, code: usecase.ErrorInternal},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: usecase.ErrorInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := ErrorStatus(tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, string(tc.code), body.Error)
			require.NotEmpty(t, body.Message)
		})
	}
}

func TestErrorStatus_ReasonSpecificMessages(t *testing.T) {
	_, body := ErrorStatus(&usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "question_too_long"})
	require.Equal(t, "The question is too long.", body.Message)
}
