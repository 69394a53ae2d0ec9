// Package correlation links security events within a session into
// multi-step attack patterns.
package correlation

// EventType is the kind of agent action behind a SecurityEvent.
type EventType string

const (
	EventRead     EventType = "READ"
	EventWrite    EventType = "WRITE"
	EventBash     EventType = "BASH"
	EventWebFetch EventType = "WEBFETCH"
)

// SecurityEvent is one observed agent action. Events are values and are never
// mutated once recorded.
type SecurityEvent struct {
	EventType EventType `json:"event_type"`
	Target    string    `json:"target"`
	SessionID string    `json:"session_id"`
	Timestamp float64   `json:"timestamp"`
	RiskScore int       `json:"risk_score"`
}

// Correlation is a detected relationship between two events of one session.
// SourceEvent is the event that was already buffered; RelatedEvent is the
// event whose arrival produced the correlation.
type Correlation struct {
	ID              string         `json:"id"`
	CorrelationType string         `json:"correlation_type"`
	MitreTechnique  string         `json:"mitre_technique"`
	ScoreModifier   int            `json:"score_modifier"`
	Confidence      float64        `json:"confidence"`
	SessionID       string         `json:"session_id"`
	Context         map[string]any `json:"context"`
	Description     string         `json:"description"`
	SourceEvent     SecurityEvent  `json:"source_event"`
	RelatedEvent    SecurityEvent  `json:"related_event"`
}

// Context keys present on every Correlation.
const (
	CtxTimeDelta     = "time_delta_seconds"
	CtxSourceTarget  = "source_target"
	CtxRelatedTarget = "related_target"
	CtxWindow        = "window_seconds"
)
