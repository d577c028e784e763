package web

import (
	"errors"
	"net/http"

	"faq-agent/internal/usecase"
)

// ErrorBody is the JSON error payload returned to the chat page.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorMessages = map[usecase.ErrorCode]string{
	usecase.ErrorInvalidInput: "Please enter a question.",
	usecase.ErrorSessionBusy:  "The assistant is still answering your previous question.",
	usecase.ErrorAuth:         "The assistant could not authenticate with the agent service. Check the AWS credentials, region, and agent ids.",
	usecase.ErrorRateLimited:  "The agent service is busy. Please try again shortly.",
	usecase.ErrorNetwork:      "The agent service could not be reached.",
	usecase.ErrorTimeout:      "The agent took too long to answer.",
	usecase.ErrorUpstream:     "The agent call failed.",
	usecase.ErrorInternal:     "Something went wrong on our side.",
}

// ErrorStatus maps a use case error to an HTTP status and a user-facing body.
// Unknown errors are reported as internal.
func ErrorStatus(err error) (int, ErrorBody) {
	code := usecase.ErrorInternal
	reason := ""
	var ue *usecase.Error
	if errors.As(err, &ue) {
		code = ue.Code
		reason = ue.Reason
	}

	status := http.StatusInternalServerError
	switch code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorSessionBusy:
		status = http.StatusConflict
	case usecase.ErrorRateLimited:
		status = http.StatusTooManyRequests
	case usecase.ErrorTimeout:
		status = http.StatusGatewayTimeout
	case usecase.ErrorAuth, usecase.ErrorNetwork, usecase.ErrorUpstream:
		status = http.StatusBadGateway
	}

	msg, ok := errorMessages[code]
	if !ok {
		msg = errorMessages[usecase.ErrorInternal]
	}
	switch reason {
	case "question_too_long":
		msg = "The question is too long."
	case "invalid_session_id":
		msg = "The chat session is invalid. Start a new session."
	}
	return status, ErrorBody{Error: string(code), Message: msg}
}
