package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"clinical-rag/internal/blobstore"
	"clinical-rag/internal/contextutil"
	"clinical-rag/internal/directory"
	"clinical-rag/internal/indexer"
	"clinical-rag/internal/rag"
	"clinical-rag/internal/retry"
	"clinical-rag/internal/storage"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// statusForError maps a service error to an HTTP status code and the
// message shown to the caller.
func statusForError(err error, defaultMsg string) (int, string) {
	var (
		empty     *indexer.EmptyDocumentError
		exhausted *retry.ExhaustedError
	)
	switch {
	case errors.Is(err, rag.ErrGuardrail):
		return http.StatusBadRequest, rag.EmergencyMessage
	case errors.Is(err, rag.ErrInvalidQuery), errors.Is(err, indexer.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &empty):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, blobstore.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, directory.ErrUnknownClinician):
		return http.StatusNotFound, "Unknown clinician"
	case errors.As(err, &exhausted):
		return http.StatusBadGateway, "External service error"
	default:
		return http.StatusInternalServerError, defaultMsg
	}
}

// handleError logs err and writes the mapped error response.
func handleError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	statusCode, msg := statusForError(err, defaultMsg)
	logger := contextutil.LoggerFromContext(ctx)
	if statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", statusCode, "error", err)
	} else {
		logger.WarnContext(ctx, "request rejected", "status", statusCode, "error", err)
	}
	writeError(w, statusCode, msg)
}
