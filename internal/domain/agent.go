package domain

// AgentRequest is a single question sent to the remote agent.
type AgentRequest struct {
	SessionID string
	Question  string
}

// AgentResponse is the remote agent's answer plus the trace it reported.
type AgentResponse struct {
	Text        string
	SessionID   string
	Trace       []TraceEvent
	TraceEvents int
}

// Trace event sources.
const (
	TraceSourceKnowledgeBase = "knowledge_base_lookup"
	TraceSourceAttribution   = "attribution"
	TraceSourceFailure       = "failure"
)

// TraceEvent is the provider-agnostic view of one remote trace record that
// mentions retrieved passages or a failure.
type TraceEvent struct {
	Source        string
	References    []RetrievedReference
	FailureReason string
}

// RetrievedReference is a source passage the remote service reported retrieving.
type RetrievedReference struct {
	URI          string
	LocationType string
	Page         int
	Snippet      string
}
