package domain

import "time"

// Session correlates a sequence of turns with the remote agent's own session memory.
type Session struct {
	ID        string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Turn is one question and its generated answer. Turns are immutable once appended
// to a session transcript.
type Turn struct {
	Question    string     `json:"question"`
	Answer      string     `json:"answer"`
	Citations   []Citation `json:"citations"`
	TraceEvents int        `json:"traceEvents"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Grounded reports whether the answer carries at least one citation.
func (t Turn) Grounded() bool {
	return len(t.Citations) > 0
}
