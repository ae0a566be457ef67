package handlers

import (
	"net/http"

	"clinical-rag/internal/directory"
	"clinical-rag/internal/indexer"
	"clinical-rag/internal/vectorstore"
)

// CollectionsHandler reports every vector collection grouped by kind.
type CollectionsHandler struct {
	store          vectorstore.VectorStore
	dir            *directory.Directory
	embeddingModel string
}

// NewCollectionsHandler creates a new CollectionsHandler.
func NewCollectionsHandler(store vectorstore.VectorStore, dir *directory.Directory, embeddingModel string) *CollectionsHandler {
	return &CollectionsHandler{store: store, dir: dir, embeddingModel: embeddingModel}
}

// ServeHTTP handles GET /api/collections.
//
// swagger:route GET /api/collections listCollections
func (h *CollectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inv, err := indexer.BuildInventory(ctx, h.store, h.dir, h.embeddingModel)
	if err != nil {
		handleError(ctx, w, err, "Failed to list collections")
		return
	}
	writeJSON(ctx, w, http.StatusOK, inv)
}
