package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks clinical-rag/internal/vectorstore VectorStore

import (
	"context"
	"errors"
)

var (
	// ErrCollectionNotFound is returned when searching a collection that was never created.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrVectorSizeMismatch is returned when vectors don't match the collection's dimensionality.
	ErrVectorSizeMismatch = errors.New("collection vector size mismatch")
)

// DocumentIDKey is the payload field DeleteByDocument filters on.
const DocumentIDKey = "document_id"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// CollectionInfo describes a collection's configuration and size.
type CollectionInfo struct {
	VectorSize  int
	PointsCount int
	Status      string
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the k points most similar to query, best first.
	Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error)

	// DeleteByDocument removes every point whose document_id payload equals documentID.
	DeleteByDocument(ctx context.Context, collection string, documentID string) error

	// EnsureCollection creates the collection if missing and validates its vector size otherwise.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns information about a collection including point count.
	GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)
}
