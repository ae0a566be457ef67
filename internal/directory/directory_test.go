package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistry = `
clinicians:
  - id: ann_lee
    name: Dr. Ann Lee
    specialties:
      - name: Knee
        icon: knee
        conditions:
          - name: ACL Tears
  - id: ann
    name: Dr. Ann
  - id: bo_chen
    name: Dr. Bo Chen
sharing:
  bo_chen: [ann_lee]
permissions:
  dr_general_zeta: [ann_lee]
  dr_general_alpha: [ann_lee, bo_chen]
  clinic_handbook: [bo_chen]
body_parts:
  Knee: [acl, knee]
procedures:
  acl:
    name: ACL Reconstruction
    category: Knee
    icon: knee
  rotator_cuff:
    name: Rotator Cuff Repair
    category: Shoulder
    icon: shoulder
`

type stubLister struct {
	names []string
	err   error
}

func (s stubLister) ListCollections(context.Context) ([]string, error) {
	return s.names, s.err
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Joshua Dines", "joshua_dines"},
		{"Dr. Joshua Dines", "dr_joshua_dines"},
		{"  UCL  Protocol ", "ucl_protocol"},
		{"joshua_dines", "joshua_dines"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	d, err := Parse([]byte(testRegistry))
	require.NoError(t, err)

	c, ok := d.Clinician("ann_lee")
	require.True(t, ok)
	assert.Equal(t, "Dr. Ann Lee", c.Name)
	assert.Equal(t, "Dr. Ann Lee", d.DisplayName("ann_lee"))
	assert.Equal(t, "ghost", d.DisplayName("ghost"))
	assert.Len(t, d.Clinicians(), 3)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "clinicians: [:"},
		{"missing id", "clinicians:\n  - name: Dr. Nobody\n"},
		{"duplicate id", "clinicians:\n  - id: a\n  - id: a\n"},
		{"permissions not a mapping", "permissions: [a, b]\n"},
		{"permission entry not a list", "permissions:\n  dr_general_x: {a: b}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0644))

	d, err := Load(path)
	require.NoError(t, err)
	_, ok := d.Clinician("bo_chen")
	assert.True(t, ok)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	d := Default()
	c, ok := d.Clinician("joshua_dines")
	require.True(t, ok)
	assert.Equal(t, "Dr. Joshua Dines", c.Name)
	assert.Equal(t, []string{"joshua_dines"}, d.SharedWith("asheesh_bedi"))
	assert.Empty(t, d.SharedWith("joshua_dines"), "sharing is directional")
	assert.Equal(t, []string{"ucl", "elbow"}, d.BodyPartKeywords("elbow"))
}

func TestOwner(t *testing.T) {
	d, err := Parse([]byte(testRegistry))
	require.NoError(t, err)

	tests := []struct {
		collection string
		wantID     string
		wantOK     bool
	}{
		{"dr_ann_lee_acl", "ann_lee", true},
		{"dr_ann_knee", "ann", true},
		{"dr_bo_chen_protocols", "bo_chen", true},
		{"dr_general_acl_rct", "", false},
		{"dr_unknown_acl", "", false},
		{"org_demo_chunks", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.collection, func(t *testing.T) {
			c, ok := d.Owner(tt.collection)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, c.ID)
		})
	}
}

func TestPermittedCollections_RegistryOrder(t *testing.T) {
	d, err := Parse([]byte(testRegistry))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		assert.Equal(t, []string{"dr_general_zeta", "dr_general_alpha"}, d.PermittedCollections("ann_lee"))
	}
	assert.Equal(t, []string{"dr_general_alpha", "clinic_handbook"}, d.PermittedCollections("bo_chen"))
	assert.Empty(t, d.PermittedCollections("ann"))
}

func TestBodyPartKeywords(t *testing.T) {
	d, err := Parse([]byte(testRegistry))
	require.NoError(t, err)

	assert.Equal(t, []string{"acl", "knee"}, d.BodyPartKeywords("knee"))
	assert.Equal(t, []string{"acl", "knee"}, d.BodyPartKeywords("KNEE"))
	assert.Equal(t, []string{"lower_back"}, d.BodyPartKeywords("Lower Back"))
	assert.Nil(t, d.BodyPartKeywords(""))
}

func TestSpecialties(t *testing.T) {
	d, err := Parse([]byte(testRegistry))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("derived from collections", func(t *testing.T) {
		lister := stubLister{names: []string{"dr_ann_lee_acl", "dr_ann_lee_rotator_cuff", "dr_ann_lee_hip_scope", "dr_general_acl_rct"}}
		got, err := d.Specialties(ctx, "ann_lee", lister)
		require.NoError(t, err)
		assert.Equal(t, SourceCollections, got.Source)
		require.Len(t, got.Categories, 3)
		assert.Equal(t, "Shoulder", got.Categories[0].Name)
		assert.Equal(t, "Knee", got.Categories[1].Name)
		assert.Equal(t, "General", got.Categories[2].Name)
		assert.Equal(t, "Hip Scope", got.Categories[2].Conditions[0].Name)
	})

	t.Run("shared clinician collections count", func(t *testing.T) {
		lister := stubLister{names: []string{"dr_ann_lee_acl"}}
		got, err := d.Specialties(ctx, "bo_chen", lister)
		require.NoError(t, err)
		assert.Equal(t, SourceCollections, got.Source)
		require.Len(t, got.Categories, 1)
		assert.Equal(t, "ACL Reconstruction", got.Categories[0].Conditions[0].Name)
	})

	t.Run("listing failure falls back to static", func(t *testing.T) {
		got, err := d.Specialties(ctx, "ann_lee", stubLister{err: errors.New("unreachable")})
		require.NoError(t, err)
		assert.Equal(t, SourceStatic, got.Source)
		require.Len(t, got.Categories, 1)
		assert.Equal(t, "Knee", got.Categories[0].Name)
	})

	t.Run("no owned collections falls back to static", func(t *testing.T) {
		got, err := d.Specialties(ctx, "bo_chen", stubLister{names: []string{"dr_general_alpha"}})
		require.NoError(t, err)
		assert.Equal(t, SourceStatic, got.Source)
		assert.Empty(t, got.Categories)
	})

	t.Run("unknown clinician", func(t *testing.T) {
		_, err := d.Specialties(ctx, "ghost", stubLister{})
		assert.ErrorIs(t, err, ErrUnknownClinician)
	})
}
