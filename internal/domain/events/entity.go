package events

import "time"

// Type enum of known pipeline stages
type Type string

const (
	TypeUpload          Type = "upload"
	TypeAnalysisStart   Type = "analysis_start"
	TypeAnalysisSuccess Type = "analysis_success"
	TypeAnalysisError   Type = "analysis_error"
	TypeExportStart     Type = "export_start"
	TypeExportSuccess   Type = "export_success"
	TypeExportError     Type = "export_error"
	TypeSessionClear    Type = "session_clear"
)

// UsageEvent is a single telemetry row. Append-only, write-only from
// the pipeline's perspective; the server assigns id and timestamp.
type UsageEvent struct {
	ID           int64          `json:"id"`
	EventType    Type           `json:"event_type"`
	SessionID    string         `json:"session_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Summary row for the stats view: events per type.
type TypeCount struct {
	EventType Type  `json:"event_type"`
	Count     int64 `json:"count"`
}
