package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinical-rag/internal/directory"
	"clinical-rag/internal/rag"
)

// ClinicianHandler serves the clinician registry and per-clinician views.
type ClinicianHandler struct {
	dir      *directory.Directory
	resolver *rag.Resolver
	lister   directory.CollectionLister
}

// NewClinicianHandler creates a new ClinicianHandler.
func NewClinicianHandler(dir *directory.Directory, resolver *rag.Resolver, lister directory.CollectionLister) *ClinicianHandler {
	return &ClinicianHandler{dir: dir, resolver: resolver, lister: lister}
}

// ClinicianResponse is one registry entry.
//
// swagger:model ClinicianResponse
type ClinicianResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Specialty  string   `json:"specialty"`
	Procedures []string `json:"procedures"`
}

// List handles GET /api/clinicians.
func (h *ClinicianHandler) List(w http.ResponseWriter, r *http.Request) {
	clinicians := h.dir.Clinicians()
	resp := make([]ClinicianResponse, len(clinicians))
	for i, c := range clinicians {
		procedures := c.Procedures
		if procedures == nil {
			procedures = []string{}
		}
		resp[i] = ClinicianResponse{ID: c.ID, Name: c.Name, Specialty: c.Specialty, Procedures: procedures}
	}
	writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Collections handles GET /api/clinicians/{id}/collections. It reports the
// search set a query for this clinician would use, by rule.
func (h *ClinicianHandler) Collections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, ok := h.dir.Clinician(id); !ok {
		handleError(ctx, w, fmt.Errorf("%w: %s", directory.ErrUnknownClinician, id), "Failed to resolve collections")
		return
	}
	writeJSON(ctx, w, http.StatusOK, h.resolver.Resolve(ctx, rag.QueryContext{ClinicianID: id}))
}

// Specialties handles GET /api/clinicians/{id}/specialties.
func (h *ClinicianHandler) Specialties(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	specialties, err := h.dir.Specialties(ctx, chi.URLParam(r, "id"), h.lister)
	if err != nil {
		handleError(ctx, w, err, "Failed to load specialties")
		return
	}
	writeJSON(ctx, w, http.StatusOK, specialties)
}
