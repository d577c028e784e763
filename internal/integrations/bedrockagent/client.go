package bedrockagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"faq-agent/internal/domain"
)

// agentAPI is the minimal Bedrock Agent Runtime interface required by Client.
// *bedrockagentruntime.Client satisfies this interface.
type agentAPI interface {
	InvokeAgent(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

// eventStream is the read side of an InvokeAgent response stream.
type eventStream interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

// RemoteError is reported when the agent finishes without an answer, either
// because it emitted a failure trace or because the stream carried no text.
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string {
	return "bedrockagent: remote agent failure: " + e.Reason
}

// Client invokes a single Bedrock agent alias.
type Client struct {
	api         agentAPI
	agentID     string
	aliasID     string
	enableTrace bool

	stream func(*bedrockagentruntime.InvokeAgentOutput) eventStream
}

type Option func(*Client)

// WithTrace toggles trace events. Citations are only available with trace enabled.
func WithTrace(enabled bool) Option {
	return func(c *Client) {
		c.enableTrace = enabled
	}
}

func New(api agentAPI, agentID, aliasID string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrockagent: api must not be nil")
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, errors.New("bedrockagent: agent id must not be empty")
	}
	aliasID = strings.TrimSpace(aliasID)
	if aliasID == "" {
		return nil, errors.New("bedrockagent: agent alias id must not be empty")
	}
	c := &Client{
		api:         api,
		agentID:     agentID,
		aliasID:     aliasID,
		enableTrace: true,
		stream:      sdkStream,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func sdkStream(out *bedrockagentruntime.InvokeAgentOutput) eventStream {
	s := out.GetStream()
	if s == nil {
		return nil
	}
	return s
}

// Invoke sends the question and drains the response stream. onChunk, when not nil,
// receives each text chunk as it arrives.
func (c *Client) Invoke(ctx context.Context, req domain.AgentRequest, onChunk func(string)) (domain.AgentResponse, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return domain.AgentResponse{}, errors.New("bedrockagent: session id is required")
	}
	if strings.TrimSpace(req.Question) == "" {
		return domain.AgentResponse{}, errors.New("bedrockagent: question is required")
	}

	out, err := c.api.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(c.agentID),
		AgentAliasId: aws.String(c.aliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(req.Question),
		EnableTrace:  aws.Bool(c.enableTrace),
	})
	if err != nil {
		return domain.AgentResponse{}, fmt.Errorf("bedrockagent: invoke agent: %w", err)
	}
	if out == nil {
		return domain.AgentResponse{}, errors.New("bedrockagent: invoke agent: empty output")
	}
	stream := c.stream(out)
	if stream == nil {
		return domain.AgentResponse{}, errors.New("bedrockagent: invoke agent: no event stream")
	}
	defer func() { _ = stream.Close() }()

	resp := domain.AgentResponse{SessionID: aws.ToString(out.SessionId)}
	if resp.SessionID == "" {
		resp.SessionID = sessionID
	}

	var text strings.Builder
	var failure string
	events := stream.Events()
loop:
	for {
		select {
		case <-ctx.Done():
			return domain.AgentResponse{}, fmt.Errorf("bedrockagent: read stream: %w", ctx.Err())
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			switch v := ev.(type) {
			case *types.ResponseStreamMemberChunk:
				if len(v.Value.Bytes) > 0 {
					chunk := string(v.Value.Bytes)
					text.WriteString(chunk)
					if onChunk != nil {
						onChunk(chunk)
					}
				}
				if te, ok := attributionEvent(v.Value.Attribution); ok {
					resp.Trace = append(resp.Trace, te)
				}
			case *types.ResponseStreamMemberTrace:
				resp.TraceEvents++
				if te, ok := traceEvent(v.Value.Trace); ok {
					if te.FailureReason != "" {
						failure = te.FailureReason
					}
					resp.Trace = append(resp.Trace, te)
				}
			default:
				slog.DebugContext(ctx, "ignoring agent stream event", "type", fmt.Sprintf("%T", ev))
			}
		}
	}
	if err := stream.Err(); err != nil {
		return domain.AgentResponse{}, fmt.Errorf("bedrockagent: read stream: %w", err)
	}

	resp.Text = text.String()
	if strings.TrimSpace(resp.Text) == "" {
		if failure == "" {
			failure = "empty completion"
		}
		return domain.AgentResponse{}, &RemoteError{Reason: failure}
	}
	return resp, nil
}
