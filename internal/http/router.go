package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"clinical-rag/internal/blobstore"
	"clinical-rag/internal/directory"
	"clinical-rag/internal/handlers"
	"clinical-rag/internal/indexer"
	"clinical-rag/internal/rag"
	"clinical-rag/internal/storage"
	"clinical-rag/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine            rag.Engine
	Resolver          *rag.Resolver
	Pipeline          *indexer.Pipeline
	Directory         *directory.Directory
	VectorStore       vectorstore.VectorStore
	Statuses          storage.StatusStore
	Blobs             blobstore.Store
	DefaultCollection string
	EmbeddingModel    string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	clinicians := handlers.NewClinicianHandler(deps.Directory, deps.Resolver, deps.VectorStore)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/query", handlers.NewQueryHandler(deps.Engine))

		r.Method(http.MethodPost, "/documents/ingest", handlers.NewIngestHandler(deps.Pipeline, deps.DefaultCollection))
		r.Method(http.MethodPost, "/documents/upload", handlers.NewUploadHandler(deps.Blobs, deps.Pipeline, deps.DefaultCollection))
		r.Method(http.MethodGet, "/documents/status", handlers.NewStatusHandler(deps.Statuses))

		r.Method(http.MethodGet, "/collections", handlers.NewCollectionsHandler(deps.VectorStore, deps.Directory, deps.EmbeddingModel))

		r.Get("/clinicians", clinicians.List)
		r.Get("/clinicians/{id}/collections", clinicians.Collections)
		r.Get("/clinicians/{id}/specialties", clinicians.Specialties)

		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.VectorStore, deps.Statuses))
	})

	return r
}
