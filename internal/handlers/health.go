package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"clinical-rag/internal/contextutil"
	"clinical-rag/internal/storage"
	"clinical-rag/internal/vectorstore"
)

// healthProbeID is looked up in the status store; not finding it is healthy.
const healthProbeID = "__health_probe__"

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	vectorStore        vectorstore.VectorStore
	statuses           storage.StatusStore
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(vectorStore vectorstore.VectorStore, statuses storage.StatusStore) *HealthHandler {
	return &HealthHandler{
		vectorStore:        vectorStore,
		statuses:           statuses,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// swagger:route GET /api/health healthCheck
//
// # Health check endpoint
//
// Returns 200 when the vector store and the status store answer, 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	if h.checkVectorStore(checkCtx, logger) {
		checks["vector_store"] = "ok"
	} else {
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
	}

	if h.checkStatusStore(checkCtx, logger) {
		checks["status_store"] = "ok"
	} else {
		checks["status_store"] = "error"
		issues = append(issues, "status_store_unavailable")
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	})
}

func (h *HealthHandler) checkVectorStore(ctx context.Context, logger *slog.Logger) bool {
	if _, err := h.vectorStore.ListCollections(ctx); err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		return false
	}
	return true
}

func (h *HealthHandler) checkStatusStore(ctx context.Context, logger *slog.Logger) bool {
	_, err := h.statuses.Get(ctx, healthProbeID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.WarnContext(ctx, "status store health check failed", "error", err)
		return false
	}
	return true
}
