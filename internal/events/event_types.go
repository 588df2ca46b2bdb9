package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAnalysisRecorded EventType = "analysis_recorded"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AnalysisRecordedPayload carries a freshly persisted history record.
type AnalysisRecordedPayload struct {
	RecordID        string   `json:"record_id"`
	Kind            string   `json:"kind"`
	Symptoms        string   `json:"symptoms"`
	Severity        string   `json:"severity"`
	Conditions      []string `json:"conditions"`
	Recommendations []string `json:"recommendations"`
}
