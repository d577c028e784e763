// Package app wires configuration into a ready ask service.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"faq-agent/internal/citation"
	"faq-agent/internal/config"
	"faq-agent/internal/integrations/bedrockagent"
	"faq-agent/internal/integrations/paramstore"
	"faq-agent/internal/repository"
	"faq-agent/internal/usecase"
)

// NewAskService builds the AWS clients, resolves the agent identifiers and
// assembles the ask use case.
func NewAskService(ctx context.Context, cfg *config.Config) (*usecase.AskService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOptions(cfg.Agent)...)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}

	agentCfg := cfg.Agent
	if !agentCfg.Complete() {
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, fmt.Errorf("app: create SSM client: %w", err)
		}
		agentCfg, err = agentCfg.Resolve(ctx, params)
		if err != nil {
			return nil, err
		}
	}

	agent, err := bedrockagent.New(
		bedrockagentruntime.NewFromConfig(awsCfg),
		agentCfg.AgentID,
		agentCfg.AliasID,
		bedrockagent.WithTrace(agentCfg.EnableTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create agent client: %w", err)
	}

	store, err := newStore(cfg.State, awsCfg)
	if err != nil {
		return nil, err
	}

	svc, err := usecase.NewAskService(
		agent,
		citation.NewFormatter(
			citation.WithLimit(cfg.Chat.CitationLimit),
			citation.WithSnippetLength(cfg.Chat.SnippetLength),
		),
		store,
		cfg.Chat.MaxQuestionLen,
		cfg.Chat.TranscriptLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("app: create ask service: %w", err)
	}

	slog.Info("ask service ready",
		"agent_id", agentCfg.AgentID,
		"alias_id", agentCfg.AliasID,
		"region", awsCfg.Region,
		"trace", agentCfg.EnableTrace,
		"state_table", cfg.State.Table,
	)
	return svc.WithTimeout(agentCfg.Timeout), nil
}

func awsOptions(agent config.AgentConfig) []func(*awsconfig.LoadOptions) error {
	var opts []func(*awsconfig.LoadOptions) error
	if agent.Region != "" {
		opts = append(opts, awsconfig.WithRegion(agent.Region))
	}
	if agent.MaxAttempts > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(agent.MaxAttempts))
	}
	return opts
}

func newStore(state config.StateConfig, awsCfg aws.Config) (usecase.TranscriptStore, error) {
	if state.Table == "" {
		return repository.NewMemory(), nil
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), state.Table)
	if err != nil {
		return nil, fmt.Errorf("app: create transcript store: %w", err)
	}
	return store, nil
}
