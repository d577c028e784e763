package config

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setAgentEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BEDROCK_AGENT_ID", "AGENT123")
	t.Setenv("BEDROCK_AGENT_ALIAS_ID", "ALIAS456")
}

func TestLoad_Defaults(t *testing.T) {
	setAgentEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("PARAM_PREFIX", "")
	t.Setenv("STATE_TABLE", "")
	t.Setenv("AGENT_ENABLE_TRACE", "")
	t.Setenv("AGENT_TIMEOUT", "")
	t.Setenv("MAX_QUESTION_LENGTH", "")
	t.Setenv("CITATION_LIMIT", "")
	t.Setenv("TRANSCRIPT_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "AGENT123", cfg.Agent.AgentID)
	require.Equal(t, "ALIAS456", cfg.Agent.AliasID)
	require.True(t, cfg.Agent.EnableTrace)
	require.Zero(t, cfg.Agent.Timeout)
	require.Equal(t, defaultMaxQuestionLen, cfg.Chat.MaxQuestionLen)
	require.Equal(t, defaultCitationLimit, cfg.Chat.CitationLimit)
	require.Equal(t, defaultTranscriptLimit, cfg.Chat.TranscriptLimit)
	require.Empty(t, cfg.State.Table)
	require.Equal(t, defaultTitle, cfg.UI.Title)
}

func TestLoad_Overrides(t *testing.T) {
	setAgentEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AGENT_ENABLE_TRACE", "false")
	t.Setenv("AGENT_TIMEOUT", "45s")
	t.Setenv("AGENT_MAX_ATTEMPTS", "1")
	t.Setenv("CITATION_LIMIT", "0")
	t.Setenv("STATE_TABLE", "faq-state")
	t.Setenv("PARAM_PREFIX", "/faq-agent/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.False(t, cfg.Agent.EnableTrace)
	require.Equal(t, 45*time.Second, cfg.Agent.Timeout)
	require.Equal(t, 1, cfg.Agent.MaxAttempts)
	require.Equal(t, 0, cfg.Chat.CitationLimit)
	require.Equal(t, "faq-state", cfg.State.Table)
	require.Equal(t, "/faq-agent", cfg.Agent.ParamPrefix)
}

func TestLoad_TranscriptLimitClampedToInt32(t *testing.T) {
	setAgentEnv(t)
	t.Setenv("TRANSCRIPT_LIMIT", "9999999999")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, math.MaxInt32, cfg.Chat.TranscriptLimit)
}

func TestLoad_SnippetLength(t *testing.T) {
	setAgentEnv(t)
	t.Setenv("CITATION_SNIPPET_LENGTH", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 280, cfg.Chat.SnippetLength)

	t.Setenv("CITATION_SNIPPET_LENGTH", "120")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, 120, cfg.Chat.SnippetLength)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                    "80 80",
		"AGENT_ENABLE_TRACE":      "maybe",
		"AGENT_TIMEOUT":           "soon",
		"CITATION_LIMIT":          "-1",
		"CITATION_SNIPPET_LENGTH": "-5",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			setAgentEnv(t)
			t.Setenv(key, val)
			_, err := Load()
			require.Error(t, err)
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_RequiresAgentOrPrefix(t *testing.T) {
	t.Setenv("BEDROCK_AGENT_ID", "")
	t.Setenv("BEDROCK_AGENT_ALIAS_ID", "")
	t.Setenv("PARAM_PREFIX", "")
	_, err := Load()
	require.ErrorContains(t, err, "BEDROCK_AGENT_ID")

	t.Setenv("PARAM_PREFIX", "/faq-agent")
	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.Agent.Complete())
}

type fakeLookup struct {
	vals  map[string]string
	err   error
	names []string
}

func (f *fakeLookup) Lookup(_ context.Context, names ...string) (map[string]string, error) {
	f.names = names
	return f.vals, f.err
}

func TestResolve_FromParamStore(t *testing.T) {
	params := &fakeLookup{vals: map[string]string{
		"/faq/agent_id":       "AGENT-SSM",
		"/faq/agent_alias_id": "ALIAS-SSM",
	}}
	cfg, err := AgentConfig{ParamPrefix: "/faq", AliasID: "ALIAS-ENV"}.Resolve(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, "AGENT-SSM", cfg.AgentID)
	require.Equal(t, "ALIAS-ENV", cfg.AliasID)
	require.Equal(t, []string{"/faq/agent_id", "/faq/agent_alias_id"}, params.names)
}

func TestResolve_CompleteSkipsLookup(t *testing.T) {
	params := &fakeLookup{}
	cfg, err := AgentConfig{AgentID: "a", AliasID: "b", ParamPrefix: "/faq"}.Resolve(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, "a", cfg.AgentID)
	require.Nil(t, params.names)
}

func TestResolve_Errors(t *testing.T) {
	_, err := AgentConfig{}.Resolve(context.Background(), &fakeLookup{})
	require.ErrorContains(t, err, "not configured")

	_, err = AgentConfig{ParamPrefix: "/faq"}.Resolve(context.Background(), &fakeLookup{err: errors.New("ssm down")})
	require.ErrorContains(t, err, "ssm down")

	_, err = AgentConfig{ParamPrefix: "/faq"}.Resolve(context.Background(), &fakeLookup{vals: map[string]string{"/faq/agent_id": "a"}})
	require.ErrorContains(t, err, "resolved empty")
}
