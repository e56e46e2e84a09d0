package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusFailed     DocumentStatus = "FAILED"
)

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// COMPLETED and FAILED are terminal.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Document struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	UploadDate   *time.Time     `json:"upload_date,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Content      []byte         `json:"-"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// StatusUpdate is published once per lifecycle transition.
type StatusUpdate struct {
	DocumentID   string         `json:"id"`
	Filename     string         `json:"filename"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

func NewStatusUpdate(doc *Document) StatusUpdate {
	return StatusUpdate{
		DocumentID:   doc.ID,
		Filename:     doc.Filename,
		Status:       doc.Status,
		ErrorMessage: doc.ErrorMessage,
	}
}

// UploadAck is returned to the uploader before ingestion runs.
type UploadAck struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
}

// IngestTask carries everything a background worker needs to ingest one upload.
type IngestTask struct {
	DocumentID string
	Filename   string
	StagingKey string
	EnqueuedAt time.Time
}
