package handlers

import (
	"encoding/json"
	"net/http"

	"clinical-rag/internal/contextutil"
	"clinical-rag/internal/rag"
)

// QueryHandler handles HTTP requests for clinical questions.
type QueryHandler struct {
	engine rag.Engine
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(engine rag.Engine) *QueryHandler {
	return &QueryHandler{engine: engine}
}

// QueryRequest represents the HTTP request payload for a question.
//
// swagger:model QueryRequest
type QueryRequest struct {
	// The question to answer
	Question string `json:"question"`
	// PROVIDER or PATIENT; defaults to PATIENT
	Actor string `json:"actor,omitempty"`
	// Restricts retrieval to this clinician's collections
	ClinicianID string `json:"clinician_id,omitempty"`
	// Restricts retrieval to general collections for this body part
	BodyPart string `json:"body_part,omitempty"`
}

// ServeHTTP handles HTTP requests for clinical questions.
//
// swagger:route POST /api/query askQuestion
//
// # Ask a clinical question
//
// Resolves the collections for the query context, retrieves evidence,
// generates an answer and returns it with renumbered citations.
//
// responses:
//
//	'200':
//	  description: Answer with citations
//	'400':
//	  description: Invalid query or emergency question
//	'502':
//	  description: Embedding or LLM service unavailable
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	answer, err := h.engine.Ask(ctx, rag.Query{
		Question:    req.Question,
		Actor:       rag.Actor(req.Actor),
		ClinicianID: req.ClinicianID,
		BodyPart:    req.BodyPart,
	})
	if err != nil {
		handleError(ctx, w, err, "Failed to process query")
		return
	}

	writeJSON(ctx, w, http.StatusOK, answer)
}
