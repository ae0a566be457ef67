// Package directory holds the clinician registry: who the clinicians are,
// which collections they own by name, who shares with whom, which general
// collections each clinician may search, and which collection keywords
// belong to each body part.
//
// The registry is deployment data. It is read from YAML at startup; a
// built-in copy is used when no file is configured.
package directory

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// CollectionPrefix starts every clinician-owned and general collection name.
	CollectionPrefix = "dr_"
	// GeneralPrefix marks evidence collections not owned by any one clinician.
	GeneralPrefix = "dr_general_"
)

//go:embed default.yaml
var defaultRegistry []byte

// Clinician is one registry entry.
type Clinician struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Specialty   string     `yaml:"specialty" json:"specialty"`
	Procedures  []string   `yaml:"procedures" json:"procedures"`
	Specialties []Category `yaml:"specialties" json:"-"`
}

// Procedure describes a procedure slug as it appears in collection names.
type Procedure struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	Icon        string `yaml:"icon" json:"icon"`
}

type registryFile struct {
	Clinicians  []Clinician          `yaml:"clinicians"`
	Sharing     map[string][]string  `yaml:"sharing"`
	Permissions orderedLists         `yaml:"permissions"`
	BodyParts   map[string][]string  `yaml:"body_parts"`
	Procedures  map[string]Procedure `yaml:"procedures"`
}

// Directory is the loaded, read-only registry.
type Directory struct {
	clinicians  []Clinician
	byID        map[string]int
	sharing     map[string][]string
	permissions map[string][]string
	permOrder   []string
	bodyParts   map[string][]string
	procedures  map[string]Procedure
}

// Load reads the registry at path, or the built-in registry when path is empty.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Parse(defaultRegistry)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clinician registry: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in registry.
func Default() *Directory {
	d, err := Parse(defaultRegistry)
	if err != nil {
		panic(fmt.Sprintf("built-in clinician registry is invalid: %v", err))
	}
	return d
}

// Parse builds a Directory from YAML.
func Parse(data []byte) (*Directory, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse clinician registry: %w", err)
	}

	d := &Directory{
		clinicians:  f.Clinicians,
		byID:        make(map[string]int, len(f.Clinicians)),
		sharing:     f.Sharing,
		permissions: f.Permissions.values,
		permOrder:   f.Permissions.keys,
		bodyParts:   make(map[string][]string, len(f.BodyParts)),
		procedures:  f.Procedures,
	}
	for i, c := range f.Clinicians {
		if c.ID == "" {
			return nil, fmt.Errorf("clinician %d has no id", i)
		}
		if _, dup := d.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate clinician id %q", c.ID)
		}
		d.byID[c.ID] = i
	}
	for part, keywords := range f.BodyParts {
		d.bodyParts[Slugify(part)] = keywords
	}

	return d, nil
}

// orderedLists is a YAML mapping of string lists that remembers key order.
type orderedLists struct {
	keys   []string
	values map[string][]string
}

func (o *orderedLists) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	o.keys = make([]string, 0, len(node.Content)/2)
	o.values = make(map[string][]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		var list []string
		if err := node.Content[i+1].Decode(&list); err != nil {
			return err
		}
		if _, dup := o.values[key]; !dup {
			o.keys = append(o.keys, key)
		}
		o.values[key] = list
	}
	return nil
}

// Slugify lower-cases s, turns spaces into underscores and drops periods.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), "_")
}

// OwnerPrefix returns the collection-name prefix owned by a clinician id.
func OwnerPrefix(clinicianID string) string {
	return CollectionPrefix + Slugify(clinicianID) + "_"
}

// IsGeneral reports whether a collection is a general evidence collection.
func IsGeneral(collection string) bool {
	return strings.HasPrefix(collection, GeneralPrefix)
}

// Clinicians returns every registered clinician in registry order.
func (d *Directory) Clinicians() []Clinician {
	out := make([]Clinician, len(d.clinicians))
	copy(out, d.clinicians)
	return out
}

// Clinician looks up a clinician by id.
func (d *Directory) Clinician(id string) (Clinician, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Clinician{}, false
	}
	return d.clinicians[i], true
}

// DisplayName returns the clinician's name, or the id when unregistered.
func (d *Directory) DisplayName(id string) string {
	if c, ok := d.Clinician(id); ok && strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return id
}

// Owner returns the clinician owning a collection by name. General
// collections and names without a registered clinician prefix have no owner.
// The longest matching prefix wins so that "dr_ann_lee_" beats "dr_ann_".
func (d *Directory) Owner(collection string) (Clinician, bool) {
	if IsGeneral(collection) || !strings.HasPrefix(collection, CollectionPrefix) {
		return Clinician{}, false
	}
	best := -1
	bestLen := 0
	for i, c := range d.clinicians {
		p := OwnerPrefix(c.ID)
		if strings.HasPrefix(collection, p) && len(p) > bestLen {
			best, bestLen = i, len(p)
		}
	}
	if best < 0 {
		return Clinician{}, false
	}
	return d.clinicians[best], true
}

// SharedWith lists the clinicians whose collections id may also search.
func (d *Directory) SharedWith(id string) []string {
	return d.sharing[id]
}

// PermittedCollections lists collections that explicitly allow id, in
// registry order.
func (d *Directory) PermittedCollections(id string) []string {
	var out []string
	for _, name := range d.permOrder {
		for _, allowed := range d.permissions[name] {
			if allowed == id {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// BodyPartKeywords returns the collection keywords for a body part. Body
// parts missing from the table use their own slug.
func (d *Directory) BodyPartKeywords(bodyPart string) []string {
	slug := Slugify(bodyPart)
	if kw, ok := d.bodyParts[slug]; ok && len(kw) > 0 {
		return kw
	}
	if slug == "" {
		return nil
	}
	return []string{slug}
}

// Procedure looks up a procedure slug in the catalog.
func (d *Directory) Procedure(slug string) (Procedure, bool) {
	p, ok := d.procedures[slug]
	return p, ok
}
