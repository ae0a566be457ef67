package rag

import (
	"context"
	"strings"

	"clinical-rag/internal/contextutil"
	"clinical-rag/internal/directory"
)

// Resolution is the set of collections a query searches, with the rule
// that contributed each one.
type Resolution struct {
	Mode        Mode     `json:"mode"`
	ClinicianID string   `json:"clinician_id,omitempty"`
	BodyPart    string   `json:"body_part,omitempty"`
	Own         []string `json:"own"`
	Shared      []string `json:"shared"`
	Permitted   []string `json:"permitted"`
	// Collections is the ordered, deduplicated search set.
	Collections []string `json:"collections"`
}

// Resolver computes search sets from the clinician directory and the live
// collection list.
type Resolver struct {
	dir               *directory.Directory
	lister            directory.CollectionLister
	defaultCollection string
}

// NewResolver creates a resolver. defaultCollection is searched when a query
// names neither a clinician nor a body part.
func NewResolver(dir *directory.Directory, lister directory.CollectionLister, defaultCollection string) *Resolver {
	return &Resolver{dir: dir, lister: lister, defaultCollection: defaultCollection}
}

// Resolve never fails. A failed collection listing is logged and resolution
// proceeds with the rules that need no listing.
func (r *Resolver) Resolve(ctx context.Context, qc QueryContext) *Resolution {
	res := &Resolution{
		Mode:      qc.Mode(),
		Own:       []string{},
		Shared:    []string{},
		Permitted: []string{},
	}

	switch res.Mode {
	case ModeClinician:
		res.ClinicianID = strings.TrimSpace(qc.ClinicianID)
		r.resolveClinician(ctx, res)
	case ModeBodyPart:
		res.BodyPart = strings.TrimSpace(qc.BodyPart)
		res.Collections = r.resolveBodyPart(ctx, res.BodyPart)
	default:
		res.Collections = []string{r.defaultCollection}
	}

	if res.Collections == nil {
		res.Collections = []string{}
	}
	return res
}

func (r *Resolver) listCollections(ctx context.Context) []string {
	names, err := r.lister.ListCollections(ctx)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to list collections for resolution", "error", err)
		return nil
	}
	return names
}

func (r *Resolver) resolveClinician(ctx context.Context, res *Resolution) {
	names := r.listCollections(ctx)

	res.Own = r.ownedBy(res.ClinicianID, names)
	for _, other := range r.dir.SharedWith(res.ClinicianID) {
		res.Shared = append(res.Shared, r.ownedBy(other, names)...)
	}
	res.Permitted = append(res.Permitted, r.dir.PermittedCollections(res.ClinicianID)...)

	seen := make(map[string]bool)
	for _, group := range [][]string{res.Own, res.Shared, res.Permitted} {
		for _, name := range group {
			if seen[name] {
				continue
			}
			seen[name] = true
			res.Collections = append(res.Collections, name)
		}
	}
}

// ownedBy returns the names carrying the clinician's ownership prefix, in
// listing order. A name whose longer prefix belongs to another registered
// clinician is left to that clinician.
func (r *Resolver) ownedBy(clinicianID string, names []string) []string {
	prefix := directory.OwnerPrefix(clinicianID)
	var out []string
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) || directory.IsGeneral(name) {
			continue
		}
		if owner, ok := r.dir.Owner(name); ok && directory.OwnerPrefix(owner.ID) != prefix {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (r *Resolver) resolveBodyPart(ctx context.Context, bodyPart string) []string {
	keywords := r.dir.BodyPartKeywords(bodyPart)
	var out []string
	for _, name := range r.listCollections(ctx) {
		if !directory.IsGeneral(name) {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
