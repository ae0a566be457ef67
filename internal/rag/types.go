package rag

import (
	"strings"

	"clinical-rag/internal/indexer"
)

// Mode is the retrieval mode chosen from a query's context.
type Mode string

const (
	ModeClinician Mode = "clinician"
	ModeBodyPart  Mode = "body_part"
	ModeDefault   Mode = "default"
)

// Actor is who is asking; it selects the answer register.
type Actor string

const (
	ActorProvider Actor = "PROVIDER"
	ActorPatient  Actor = "PATIENT"
)

// QueryContext is the declared identity of a query. When both fields are
// set the clinician wins.
type QueryContext struct {
	ClinicianID string `json:"clinician_id,omitempty"`
	BodyPart    string `json:"body_part,omitempty"`
}

// Mode returns the single active retrieval mode.
func (q QueryContext) Mode() Mode {
	switch {
	case strings.TrimSpace(q.ClinicianID) != "":
		return ModeClinician
	case strings.TrimSpace(q.BodyPart) != "":
		return ModeBodyPart
	default:
		return ModeDefault
	}
}

// Query is a question to answer.
type Query struct {
	// Question is the user's question.
	Question string `json:"question"`
	// Actor is PROVIDER or PATIENT; empty means PATIENT.
	Actor Actor `json:"actor,omitempty"`
	// ClinicianID restricts retrieval to a clinician's collections.
	ClinicianID string `json:"clinician_id,omitempty"`
	// BodyPart restricts retrieval to general collections for that body part.
	BodyPart string `json:"body_part,omitempty"`
}

// Context returns the query's retrieval context.
func (q Query) Context() QueryContext {
	return QueryContext{ClinicianID: q.ClinicianID, BodyPart: q.BodyPart}
}

// Hit is one retrieved chunk tagged with the collection it came from.
type Hit struct {
	PointID    string
	Score      float32
	Collection string
	Payload    map[string]any
}

func (h Hit) str(key string) string {
	s, _ := h.Payload[key].(string)
	return s
}

// intValue reads a payload number. Stores decode integers as int, int64 or float64.
func (h Hit) intValue(key string) (int, bool) {
	switch v := h.Payload[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	default:
		return 0, false
	}
}

// Text is the chunk text.
func (h Hit) Text() string { return h.str(indexer.PayloadText) }

// Title is the document title, or "Unknown".
func (h Hit) Title() string {
	if t := h.str(indexer.PayloadTitle); t != "" {
		return t
	}
	return "Unknown"
}

// DocumentID is the source document's storage key, or "unknown".
func (h Hit) DocumentID() string {
	if id := h.str(indexer.PayloadDocumentID); id != "" {
		return id
	}
	return "unknown"
}

// Ranked is the fused hit list for one query.
type Ranked struct {
	Mode Mode
	Hits []Hit
	// NumPrimary counts the leading hits from the clinician's own collections.
	NumPrimary int
}

// Citation is a user-facing reference to one document.
type Citation struct {
	Title           string `json:"title"`
	DocumentID      string `json:"document_id"`
	Page            *int   `json:"page,omitempty"`
	Section         string `json:"section,omitempty"`
	Author          string `json:"author,omitempty"`
	PublicationYear *int   `json:"publication_year,omitempty"`
	DocumentURL     string `json:"document_url,omitempty"`
	DisplayLabel    string `json:"display_label"`
}

// Answer is the reconciled response to a Query.
type Answer struct {
	Text             string     `json:"answer"`
	Citations        []Citation `json:"citations"`
	FollowUpQuestion string     `json:"follow_up_question,omitempty"`
	Mode             Mode       `json:"mode"`
	Collections      []string   `json:"collections"`
	LatencyMs        int64      `json:"latency_ms"`
}
