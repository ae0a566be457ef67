package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"clinical-rag/internal/contextutil"
)

// ErrUnknownClinician is returned for ids missing from the registry.
var ErrUnknownClinician = errors.New("unknown clinician")

// Condition is one treatable condition under a category.
type Condition struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Procedures  []string `yaml:"procedures" json:"procedures"`
}

// Category groups conditions by anatomical area.
type Category struct {
	Name       string      `yaml:"name" json:"name"`
	Icon       string      `yaml:"icon" json:"icon"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
}

// SpecialtySource records which tier produced a Specialties result.
type SpecialtySource string

const (
	SourceCollections SpecialtySource = "collections"
	SourceStatic      SpecialtySource = "static"
)

// Specialties is a clinician's categorized procedures.
type Specialties struct {
	ClinicianID string          `json:"clinician_id"`
	Source      SpecialtySource `json:"source"`
	Categories  []Category      `json:"categories"`
}

// CollectionLister lists every collection name in the vector store.
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]string, error)
}

var categoryOrder = map[string]int{"Shoulder": 0, "Elbow": 1, "Knee": 2}

// Specialties answers in two tiers. The first derives categories from the
// live collections the clinician (and anyone sharing with them) owns. When
// listing fails or finds nothing, the registry's static list answers instead.
func (d *Directory) Specialties(ctx context.Context, clinicianID string, lister CollectionLister) (Specialties, error) {
	logger := contextutil.LoggerFromContext(ctx)

	c, ok := d.Clinician(clinicianID)
	if !ok {
		return Specialties{}, fmt.Errorf("%w: %s", ErrUnknownClinician, clinicianID)
	}

	names, err := lister.ListCollections(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to list collections for specialties, using static table", "clinician_id", clinicianID, "error", err)
		return d.staticSpecialties(c), nil
	}

	categories := d.deriveCategories(clinicianID, names)
	if len(categories) == 0 {
		return d.staticSpecialties(c), nil
	}
	return Specialties{ClinicianID: clinicianID, Source: SourceCollections, Categories: categories}, nil
}

func (d *Directory) staticSpecialties(c Clinician) Specialties {
	categories := c.Specialties
	if categories == nil {
		categories = []Category{}
	}
	return Specialties{ClinicianID: c.ID, Source: SourceStatic, Categories: categories}
}

// deriveCategories maps each owned collection's procedure slug through the
// catalog. Unknown slugs become a readable name under "General".
func (d *Directory) deriveCategories(clinicianID string, names []string) []Category {
	owners := append([]string{clinicianID}, d.SharedWith(clinicianID)...)

	byName := make(map[string]*Category)
	var order []string
	for _, owner := range owners {
		prefix := OwnerPrefix(owner)
		for _, name := range names {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			slug := strings.TrimPrefix(name, prefix)
			info, ok := d.Procedure(slug)
			if !ok {
				readable := titleWords(strings.ReplaceAll(slug, "_", " "))
				info = Procedure{
					Name:        readable,
					Description: "Information about " + readable,
					Category:    "General",
					Icon:        "medical",
				}
			}

			cat, ok := byName[info.Category]
			if !ok {
				cat = &Category{Name: info.Category, Icon: info.Icon}
				byName[info.Category] = cat
				order = append(order, info.Category)
			}
			cat.Conditions = append(cat.Conditions, Condition{
				Name:        info.Name,
				Description: info.Description,
				Procedures:  []string{info.Name},
			})
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		ri, ok := categoryOrder[order[i]]
		if !ok {
			ri = 99
		}
		rj, ok := categoryOrder[order[j]]
		if !ok {
			rj = 99
		}
		if ri != rj {
			return ri < rj
		}
		return order[i] < order[j]
	})

	out := make([]Category, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
