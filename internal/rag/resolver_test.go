package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinical-rag/internal/directory"
)

const resolverRegistry = `
clinicians:
  - id: ann_lee
    name: Dr. Ann Lee
  - id: ann
    name: Dr. Ann
  - id: bo_chen
    name: Dr. Bo Chen
sharing:
  bo_chen: [ann_lee]
permissions:
  dr_general_acl_rct: [bo_chen, ann_lee]
  dr_ann_lee_acl: [bo_chen]
  clinic_handbook: [bo_chen]
body_parts:
  knee: [acl, knee]
`

type staticLister struct {
	names []string
	err   error
	calls int
}

func (s *staticLister) ListCollections(context.Context) ([]string, error) {
	s.calls++
	return s.names, s.err
}

func testDirectory(t *testing.T) *directory.Directory {
	t.Helper()
	dir, err := directory.Parse([]byte(resolverRegistry))
	require.NoError(t, err)
	return dir
}

var liveCollections = []string{
	"clinic_handbook",
	"dr_ann_acl",
	"dr_ann_lee_acl",
	"dr_ann_lee_meniscus",
	"dr_bo_chen_knee",
	"dr_general_acl_rct",
	"dr_general_hip",
	"dr_general_knee_lower_leg",
	"org_demo_chunks",
}

func TestResolver_ClinicianMode(t *testing.T) {
	r := NewResolver(testDirectory(t), &staticLister{names: liveCollections}, "org_demo_chunks")

	res := r.Resolve(context.Background(), QueryContext{ClinicianID: "bo_chen"})

	assert.Equal(t, ModeClinician, res.Mode)
	assert.Equal(t, []string{"dr_bo_chen_knee"}, res.Own)
	assert.Equal(t, []string{"dr_ann_lee_acl", "dr_ann_lee_meniscus"}, res.Shared)
	assert.Equal(t, []string{"dr_general_acl_rct", "dr_ann_lee_acl", "clinic_handbook"}, res.Permitted)
	assert.Equal(t, []string{
		"dr_bo_chen_knee",
		"dr_ann_lee_acl",
		"dr_ann_lee_meniscus",
		"dr_general_acl_rct",
		"clinic_handbook",
	}, res.Collections, "own, then shared, then permitted; first occurrence wins")
}

func TestResolver_ClinicianMode_Deterministic(t *testing.T) {
	r := NewResolver(testDirectory(t), &staticLister{names: liveCollections}, "org_demo_chunks")

	first := r.Resolve(context.Background(), QueryContext{ClinicianID: "bo_chen"})
	for i := 0; i < 20; i++ {
		again := r.Resolve(context.Background(), QueryContext{ClinicianID: "bo_chen"})
		require.Equal(t, first.Collections, again.Collections)
	}

	seen := make(map[string]bool)
	for _, name := range first.Collections {
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}
}

func TestResolver_ClinicianMode_SharingIsDirectional(t *testing.T) {
	r := NewResolver(testDirectory(t), &staticLister{names: liveCollections}, "org_demo_chunks")

	res := r.Resolve(context.Background(), QueryContext{ClinicianID: "ann_lee"})
	assert.Equal(t, []string{"dr_ann_lee_acl", "dr_ann_lee_meniscus", "dr_general_acl_rct"}, res.Collections)
	assert.Empty(t, res.Shared)
}

func TestResolver_ClinicianMode_LongerPrefixBelongsToOther(t *testing.T) {
	r := NewResolver(testDirectory(t), &staticLister{names: liveCollections}, "org_demo_chunks")

	res := r.Resolve(context.Background(), QueryContext{ClinicianID: "ann"})
	assert.Equal(t, []string{"dr_ann_acl"}, res.Own)
}

func TestResolver_ClinicianMode_ListingFailure(t *testing.T) {
	r := NewResolver(testDirectory(t), &staticLister{err: errors.New("qdrant down")}, "org_demo_chunks")

	res := r.Resolve(context.Background(), QueryContext{ClinicianID: "bo_chen"})
	assert.Empty(t, res.Own)
	assert.Equal(t, []string{"dr_general_acl_rct", "dr_ann_lee_acl", "clinic_handbook"}, res.Collections)
}

func TestResolver_BodyPartMode(t *testing.T) {
	tests := []struct {
		name     string
		bodyPart string
		want     []string
	}{
		{name: "keywords from table", bodyPart: "Knee", want: []string{"dr_general_acl_rct", "dr_general_knee_lower_leg"}},
		{name: "unknown part uses its slug", bodyPart: "hip", want: []string{"dr_general_hip"}},
		{name: "no matches", bodyPart: "elbow", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(testDirectory(t), &staticLister{names: liveCollections}, "org_demo_chunks")
			res := r.Resolve(context.Background(), QueryContext{BodyPart: tt.bodyPart})
			assert.Equal(t, ModeBodyPart, res.Mode)
			assert.Equal(t, tt.want, res.Collections)
		})
	}
}

func TestResolver_DefaultMode(t *testing.T) {
	lister := &staticLister{names: liveCollections}
	r := NewResolver(testDirectory(t), lister, "org_demo_chunks")

	res := r.Resolve(context.Background(), QueryContext{})
	assert.Equal(t, ModeDefault, res.Mode)
	assert.Equal(t, []string{"org_demo_chunks"}, res.Collections)
	assert.Equal(t, 0, lister.calls, "default mode needs no listing")
}

func TestQueryContext_Mode(t *testing.T) {
	assert.Equal(t, ModeClinician, QueryContext{ClinicianID: "a", BodyPart: "knee"}.Mode())
	assert.Equal(t, ModeBodyPart, QueryContext{BodyPart: "knee"}.Mode())
	assert.Equal(t, ModeDefault, QueryContext{ClinicianID: "  "}.Mode())
}
