package models

import "time"

// TraceEntry records one engine step for debugging and audits.
type TraceEntry struct {
	Step          string         `json:"step"`
	Timestamp     time.Time      `json:"timestamp"`
	DurationMs    float64        `json:"duration_ms,omitempty"`
	InputSummary  string         `json:"input_summary,omitempty"`
	OutputSummary string         `json:"output_summary,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// TraceChain is the ordered list of steps a session went through. It is
// only appended to from the engine's driver goroutine.
type TraceChain struct {
	NegotiationID string       `json:"negotiation_id"`
	Entries       []TraceEntry `json:"entries"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

// NewTraceChain starts an empty trace for the given session.
func NewTraceChain(negotiationID string) *TraceChain {
	return &TraceChain{
		NegotiationID: negotiationID,
		StartedAt:     time.Now().UTC(),
	}
}

// Add appends a step entry and returns it for further annotation.
func (t *TraceChain) Add(step string) *TraceEntry {
	t.Entries = append(t.Entries, TraceEntry{
		Step:      step,
		Timestamp: time.Now().UTC(),
	})
	return &t.Entries[len(t.Entries)-1]
}

// Complete stamps the chain's completion time.
func (t *TraceChain) Complete() {
	now := time.Now().UTC()
	t.CompletedAt = &now
}
