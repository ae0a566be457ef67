package storage

import "time"

// IngestState is the lifecycle of a document ingestion.
type IngestState string

const (
	StateQueued     IngestState = "queued"
	StateProcessing IngestState = "processing"
	StateDone       IngestState = "done"
	StateError      IngestState = "error"
)

// Terminal reports whether no further transitions are expected.
func (s IngestState) Terminal() bool {
	return s == StateDone || s == StateError
}

// IngestStatus is the recorded state of one document in one collection.
type IngestStatus struct {
	DocumentID       string      `json:"document_id"`
	Collection       string      `json:"collection"`
	SourceType       string      `json:"source_type,omitempty"`
	State            IngestState `json:"state"`
	Error            string      `json:"error,omitempty"`
	Title            string      `json:"title,omitempty"`
	Author           string      `json:"author,omitempty"`
	PublicationYear  int         `json:"publication_year,omitempty"`
	OriginalFilename string      `json:"original_filename,omitempty"`
	Chunks           int         `json:"chunks"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
