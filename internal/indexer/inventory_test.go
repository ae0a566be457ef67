package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"clinical-rag/internal/directory"
	"clinical-rag/internal/vectorstore"
	vectorstore_mocks "clinical-rag/internal/vectorstore/mocks"
)

func TestBuildInventory(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	for _, name := range []string{"dr_joshua_dines_ucl", "dr_general_knee", "legacy_docs"} {
		require.NoError(t, store.EnsureCollection(ctx, name, 2))
	}
	require.NoError(t, store.Upsert(ctx, "dr_joshua_dines_ucl", []vectorstore.Point{
		{ID: "a", Vec: []float32{1, 0}},
		{ID: "b", Vec: []float32{0, 1}},
	}))

	inv, err := BuildInventory(ctx, store, directory.Default(), "nomic-embed-text")
	require.NoError(t, err)

	require.Len(t, inv.Clinician, 1)
	assert.Equal(t, "dr_joshua_dines_ucl", inv.Clinician[0].Name)
	assert.Equal(t, "joshua_dines", inv.Clinician[0].Owner)
	assert.Equal(t, 2, inv.Clinician[0].Points)

	require.Len(t, inv.General, 1)
	assert.Equal(t, KindGeneral, inv.General[0].Kind)
	require.Len(t, inv.Other, 1)
	assert.Equal(t, "legacy_docs", inv.Other[0].Name)

	assert.Equal(t, 2, inv.TotalPoints)
	assert.Equal(t, IndexVersion("nomic-embed-text"), inv.IndexVersion)
}

func TestBuildInventory_ListFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	store.EXPECT().ListCollections(gomock.Any()).Return(nil, errors.New("unavailable"))

	_, err := BuildInventory(context.Background(), store, directory.Default(), "")
	assert.Error(t, err)
}

func TestBuildInventory_InfoFailureReportsZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	store.EXPECT().ListCollections(gomock.Any()).Return([]string{"dr_general_hip"}, nil)
	store.EXPECT().GetCollectionInfo(gomock.Any(), "dr_general_hip").Return(nil, errors.New("timeout"))

	inv, err := BuildInventory(context.Background(), store, directory.Default(), "")
	require.NoError(t, err)
	require.Len(t, inv.General, 1)
	assert.Equal(t, 0, inv.General[0].Points)
	assert.Empty(t, inv.IndexVersion)
}

func TestIndexVersion(t *testing.T) {
	a := IndexVersion("model-a")
	assert.Len(t, a, 16)
	assert.Equal(t, a, IndexVersion("model-a"))
	assert.NotEqual(t, a, IndexVersion("model-b"))
}
