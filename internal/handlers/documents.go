package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"clinical-rag/internal/blobstore"
	"clinical-rag/internal/contextutil"
	"clinical-rag/internal/indexer"
	"clinical-rag/internal/storage"
)

// maxUploadBytes bounds a single multipart upload.
const maxUploadBytes = 64 << 20

// IngestHandler handles HTTP requests for ingesting stored documents.
type IngestHandler struct {
	pipeline          *indexer.Pipeline
	defaultCollection string
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(pipeline *indexer.Pipeline, defaultCollection string) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, defaultCollection: defaultCollection}
}

// IngestRequest represents the HTTP request payload for an ingestion.
//
// swagger:model IngestRequest
type IngestRequest struct {
	// Blob key of the document
	DocumentID string `json:"document_id"`
	// Evidence kind; defaults to OTHER
	SourceType string `json:"source_type,omitempty"`
	// Target collection; names without the dr_ prefix use the default collection
	Collection string `json:"collection,omitempty"`
}

// ServeHTTP handles HTTP requests for ingesting a document.
//
// swagger:route POST /api/documents/ingest ingestDocument
//
// # Ingest a document already in the blob store
//
// Queues the document and returns 202. With sync=true the ingestion runs
// inline and the final status is returned.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sourceType, err := parseSourceType(req.SourceType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ingestReq := indexer.Request{
		DocumentID: strings.TrimSpace(req.DocumentID),
		SourceType: sourceType,
		Collection: indexer.TargetCollection(req.Collection, h.defaultCollection),
	}

	if r.URL.Query().Get("sync") == "true" {
		if _, err := h.pipeline.Ingest(ctx, ingestReq); err != nil {
			handleError(ctx, w, err, "Failed to ingest document")
			return
		}
		status, err := h.pipeline.Status(ctx, ingestReq.DocumentID)
		if err != nil {
			handleError(ctx, w, err, "Failed to read ingestion status")
			return
		}
		writeJSON(ctx, w, http.StatusOK, status)
		return
	}

	if err := h.pipeline.Submit(ctx, ingestReq); err != nil {
		handleError(ctx, w, err, "Failed to queue document")
		return
	}
	logger.InfoContext(ctx, "ingestion queued", "document_id", ingestReq.DocumentID, "collection", ingestReq.Collection)
	writeJSON(ctx, w, http.StatusAccepted, storage.IngestStatus{
		DocumentID: ingestReq.DocumentID,
		Collection: ingestReq.Collection,
		SourceType: string(sourceType),
		State:      storage.StateQueued,
	})
}

// parseSourceType accepts an empty value or a known source type, in any case.
func parseSourceType(s string) (indexer.SourceType, error) {
	st := indexer.SourceType(strings.ToUpper(strings.TrimSpace(s)))
	if st == "" {
		return indexer.SourceOther, nil
	}
	if !st.Valid() {
		return "", fmt.Errorf("unknown source type %q", s)
	}
	return st, nil
}

// StatusHandler handles HTTP requests for ingestion status.
type StatusHandler struct {
	statuses storage.StatusStore
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(statuses storage.StatusStore) *StatusHandler {
	return &StatusHandler{statuses: statuses}
}

// ServeHTTP returns the status record for ?document_id=, or 404.
//
// swagger:route GET /api/documents/status documentStatus
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	documentID := strings.TrimSpace(r.URL.Query().Get("document_id"))
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}

	status, err := h.statuses.Get(ctx, documentID)
	if err != nil {
		handleError(ctx, w, err, "Failed to read ingestion status")
		return
	}
	writeJSON(ctx, w, http.StatusOK, status)
}

// UploadHandler stores an uploaded file in the blob store and queues it
// for ingestion.
type UploadHandler struct {
	blobs             blobstore.Store
	pipeline          *indexer.Pipeline
	defaultCollection string
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(blobs blobstore.Store, pipeline *indexer.Pipeline, defaultCollection string) *UploadHandler {
	return &UploadHandler{blobs: blobs, pipeline: pipeline, defaultCollection: defaultCollection}
}

// ServeHTTP handles multipart uploads with a "file" part and optional
// "collection" and "source_type" fields.
//
// swagger:route POST /api/documents/upload uploadDocument
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		logger.WarnContext(ctx, "invalid upload", "error", err)
		writeError(w, http.StatusBadRequest, "A file is required")
		return
	}
	defer file.Close()

	sourceType, err := parseSourceType(r.FormValue("source_type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		handleError(ctx, w, err, "Failed to read upload")
		return
	}

	collection := indexer.TargetCollection(r.FormValue("collection"), h.defaultCollection)
	key := indexer.UploadKey(collection, header.Filename)
	if err := h.blobs.Put(ctx, key, data, map[string]string{blobstore.MetaOriginalFilename: header.Filename}); err != nil {
		handleError(ctx, w, err, "Failed to store upload")
		return
	}

	req := indexer.Request{DocumentID: key, Data: data, SourceType: sourceType, Collection: collection, Filename: header.Filename}
	if err := h.pipeline.Submit(ctx, req); err != nil {
		handleError(ctx, w, err, "Failed to queue document")
		return
	}
	logger.InfoContext(ctx, "upload stored", "document_id", key, "collection", collection, "bytes", len(data))

	writeJSON(ctx, w, http.StatusAccepted, storage.IngestStatus{
		DocumentID:       key,
		Collection:       collection,
		SourceType:       string(sourceType),
		State:            storage.StateQueued,
		OriginalFilename: header.Filename,
	})
}
