// Package config loads service settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads.
type Config struct {
	Server   ServerConfig
	Agent    AgentConfig
	Chat     ChatConfig
	State    StateConfig
	UI       UIConfig
	LogLevel string
}

type ServerConfig struct {
	Addr string
}

// AgentConfig identifies the remote Bedrock agent alias and how it is called.
type AgentConfig struct {
	Region      string
	AgentID     string
	AliasID     string
	ParamPrefix string
	EnableTrace bool
	Timeout     time.Duration
	MaxAttempts int
}

type ChatConfig struct {
	MaxQuestionLen  int
	CitationLimit   int
	SnippetLength   int
	TranscriptLimit int
}

// StateConfig selects the transcript store. An empty table keeps transcripts in memory.
type StateConfig struct {
	Table string
}

type UIConfig struct {
	Title    string
	Subtitle string
}

const (
	defaultPort            = "8080"
	defaultMaxQuestionLen  = 2000
	defaultCitationLimit   = 2
	defaultSnippetLength   = 280
	defaultTranscriptLimit = 50
	defaultTitle           = "Smart FAQ Assistant"
	defaultSubtitle        = "Ask questions about policies, SOPs, donor rules, and audit reports"
)

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}
	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}
	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}
	return &Config{
		Server: server,
		Agent:  agent,
		Chat:   chat,
		State:  StateConfig{Table: strings.TrimSpace(os.Getenv("STATE_TABLE"))},
		UI: UIConfig{
			Title:    envString("UI_TITLE", defaultTitle),
			Subtitle: envString("UI_SUBTITLE", defaultSubtitle),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := envString("PORT", defaultPort)
	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("config: invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

func loadAgentConfig() (AgentConfig, error) {
	trace, err := envBool("AGENT_ENABLE_TRACE", true)
	if err != nil {
		return AgentConfig{}, err
	}
	timeout, err := envDuration("AGENT_TIMEOUT", 0)
	if err != nil {
		return AgentConfig{}, err
	}
	attempts, err := envInt("AGENT_MAX_ATTEMPTS", 0)
	if err != nil {
		return AgentConfig{}, err
	}
	cfg := AgentConfig{
		Region:      strings.TrimSpace(os.Getenv("AWS_REGION")),
		AgentID:     strings.TrimSpace(os.Getenv("BEDROCK_AGENT_ID")),
		AliasID:     strings.TrimSpace(os.Getenv("BEDROCK_AGENT_ALIAS_ID")),
		ParamPrefix: strings.TrimRight(strings.TrimSpace(os.Getenv("PARAM_PREFIX")), "/"),
		EnableTrace: trace,
		Timeout:     timeout,
		MaxAttempts: attempts,
	}
	if !cfg.Complete() && cfg.ParamPrefix == "" {
		return AgentConfig{}, errors.New("config: BEDROCK_AGENT_ID and BEDROCK_AGENT_ALIAS_ID are required when PARAM_PREFIX is not set")
	}
	return cfg, nil
}

func loadChatConfig() (ChatConfig, error) {
	maxQuestion, err := envInt("MAX_QUESTION_LENGTH", defaultMaxQuestionLen)
	if err != nil {
		return ChatConfig{}, err
	}
	citations, err := envInt("CITATION_LIMIT", defaultCitationLimit)
	if err != nil {
		return ChatConfig{}, err
	}
	snippet, err := envInt("CITATION_SNIPPET_LENGTH", defaultSnippetLength)
	if err != nil {
		return ChatConfig{}, err
	}
	transcript, err := envInt("TRANSCRIPT_LIMIT", defaultTranscriptLimit)
	if err != nil {
		return ChatConfig{}, err
	}
	// DynamoDB query limits are int32.
	transcript = min(transcript, math.MaxInt32)
	return ChatConfig{
		MaxQuestionLen:  maxQuestion,
		CitationLimit:   citations,
		SnippetLength:   snippet,
		TranscriptLimit: transcript,
	}, nil
}

// Complete reports whether both agent identifiers are known.
func (c AgentConfig) Complete() bool {
	return c.AgentID != "" && c.AliasID != ""
}

// ParamLookup resolves several parameter names at once.
type ParamLookup interface {
	Lookup(ctx context.Context, names ...string) (map[string]string, error)
}

// Resolve fills missing agent identifiers from Parameter Store, reading
// <prefix>/agent_id and <prefix>/agent_alias_id. Values from the environment win.
func (c AgentConfig) Resolve(ctx context.Context, params ParamLookup) (AgentConfig, error) {
	if c.Complete() {
		return c, nil
	}
	if c.ParamPrefix == "" || params == nil {
		return AgentConfig{}, errors.New("config: agent identifiers are not configured")
	}
	idName := c.ParamPrefix + "/agent_id"
	aliasName := c.ParamPrefix + "/agent_alias_id"
	vals, err := params.Lookup(ctx, idName, aliasName)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("config: resolve agent identifiers: %w", err)
	}
	if c.AgentID == "" {
		c.AgentID = strings.TrimSpace(vals[idName])
	}
	if c.AliasID == "" {
		c.AliasID = strings.TrimSpace(vals[aliasName])
	}
	if !c.Complete() {
		return AgentConfig{}, errors.New("config: agent identifiers resolved empty")
	}
	return c, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("config: invalid %s value: %q", key, v)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s value: %q", key, v)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("config: invalid %s value: %q", key, v)
	}
	return d, nil
}
