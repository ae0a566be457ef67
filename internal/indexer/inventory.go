package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"clinical-rag/internal/directory"
	"clinical-rag/internal/vectorstore"
)

// ChunkerVersion identifies the chunking rules. Bump it when Split changes
// in a way that should trigger re-ingestion.
const ChunkerVersion = "v2.0"

// Collection kinds reported by BuildInventory.
const (
	KindClinician = "clinician"
	KindGeneral   = "general"
	KindOther     = "other"
)

// CollectionSummary describes one vector collection.
type CollectionSummary struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Owner      string `json:"owner,omitempty"`
	Points     int    `json:"points"`
	VectorSize int    `json:"vector_size"`
}

// Inventory groups every collection in the vector store.
type Inventory struct {
	Clinician    []CollectionSummary `json:"clinician"`
	General      []CollectionSummary `json:"general"`
	Other        []CollectionSummary `json:"other"`
	TotalPoints  int                 `json:"total_points"`
	IndexVersion string              `json:"index_version,omitempty"`
}

// IndexVersion hashes the chunker version, chunking parameters and
// embedding model so that stale indexes can be spotted.
func IndexVersion(embeddingModel string) string {
	input := fmt.Sprintf("%s|%s|maxChars=%d|overlap=%d", ChunkerVersion, embeddingModel, DefaultMaxChars, DefaultOverlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// BuildInventory lists the store's collections with point counts. A
// collection whose info cannot be read is reported with zero points.
func BuildInventory(ctx context.Context, store vectorstore.VectorStore, dir *directory.Directory, embeddingModel string) (*Inventory, error) {
	names, err := store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	inv := &Inventory{
		Clinician: []CollectionSummary{},
		General:   []CollectionSummary{},
		Other:     []CollectionSummary{},
	}
	if embeddingModel != "" {
		inv.IndexVersion = IndexVersion(embeddingModel)
	}

	for _, name := range names {
		summary := CollectionSummary{Name: name}
		if info, err := store.GetCollectionInfo(ctx, name); err == nil {
			summary.Points = info.PointsCount
			summary.VectorSize = info.VectorSize
		}
		inv.TotalPoints += summary.Points

		switch owner, owned := dir.Owner(name); {
		case directory.IsGeneral(name):
			summary.Kind = KindGeneral
			inv.General = append(inv.General, summary)
		case owned:
			summary.Kind = KindClinician
			summary.Owner = owner.ID
			inv.Clinician = append(inv.Clinician, summary)
		default:
			summary.Kind = KindOther
			inv.Other = append(inv.Other, summary)
		}
	}
	return inv, nil
}
