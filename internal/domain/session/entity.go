package session

import (
	"time"
)

// ID type for an analysis session (one per browser tab)
type ID string

// State enum for the analyzer state machine
type State string

const (
	StateEmpty       State = "empty"
	StateImageLoaded State = "imageLoaded"
	StateAnalyzing   State = "analyzing"
	StateReportReady State = "reportReady"
)

// UploadedImage is the single active image of a session. Replaced
// wholesale on re-upload, dropped on clear.
type UploadedImage struct {
	DataURL  string `json:"data_url"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Filename string `json:"filename"`
}

// Session aggregate: all mutable pipeline state for one tab.
// Owned exclusively by the analyzer service; never persisted.
type Session struct {
	ID        ID             `json:"id"`
	State     State          `json:"state"`
	Image     *UploadedImage `json:"image,omitempty"`
	Report    string         `json:"report,omitempty"` // sanitized HTML, replace-not-patch
	Progress  int            `json:"progress"`         // 0..100
	CreatedAt time.Time      `json:"created_at"`
}

// Report archive entry persisted after a successful analysis.
type ReportRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	ImageKey  string    `json:"image_key,omitempty"`
	Report    string    `json:"report"`
	CreatedAt time.Time `json:"created_at"`
}
