package usecase

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/aws/smithy-go"

	"faq-agent/internal/integrations/bedrockagent"
)

type httpStatusCoder interface {
	HTTPStatusCode() int
}

var (
	authErrorCodes = map[string]bool{
		"AccessDeniedException":               true,
		"UnrecognizedClientException":         true,
		"ExpiredTokenException":               true,
		"InvalidSignatureException":           true,
		"MissingAuthenticationTokenException": true,
		"IncompleteSignature":                 true,
	}
	throttleErrorCodes = map[string]bool{
		"ThrottlingException":           true,
		"ServiceQuotaExceededException": true,
		"TooManyRequestsException":      true,
	}
)

// classifyAgentError maps an agent client failure onto the error taxonomy.
func classifyAgentError(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrorTimeout, "agent_timeout", err)
	case errors.Is(err, context.Canceled):
		return newError(ErrorTimeout, "agent_canceled", err)
	}

	var remote *bedrockagent.RemoteError
	if errors.As(err, &remote) {
		return newError(ErrorUpstream, "agent_failure", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case authErrorCodes[code]:
			return newError(ErrorAuth, "agent_access_denied", err)
		case throttleErrorCodes[code]:
			return newError(ErrorRateLimited, "agent_throttled", err)
		case code == "ConflictException":
			return newError(ErrorSessionBusy, "agent_session_conflict", err)
		case code == "ResourceNotFoundException":
			return newError(ErrorUpstream, "agent_not_found", err)
		}
	}

	if status, ok := upstreamStatusCode(err); ok {
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return newError(ErrorAuth, "agent_access_denied", err)
		case status == http.StatusTooManyRequests:
			return newError(ErrorRateLimited, "agent_throttled", err)
		}
		return newError(ErrorUpstream, "agent_error", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return newError(ErrorTimeout, "agent_network_timeout", err)
		}
		return newError(ErrorNetwork, "agent_unreachable", err)
	}
	return newError(ErrorUpstream, "agent_error", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
