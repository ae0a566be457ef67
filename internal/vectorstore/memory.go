package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Ensure MemoryStore implements the interface.
var _ VectorStore = (*MemoryStore)(nil)

type memoryCollection struct {
	vectorSize int
	points     []Point // insertion order breaks score ties
}

// MemoryStore is an in-process VectorStore using cosine similarity.
// It backs local development (VECTOR_BACKEND=memory) and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// Upsert replaces points with the same ID and appends new ones.
func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("failed to upsert points: %w: %s", ErrCollectionNotFound, collection)
	}

	for _, p := range points {
		if len(p.Vec) != c.vectorSize {
			return fmt.Errorf("failed to upsert points: %w: expected %d, got %d", ErrVectorSizeMismatch, c.vectorSize, len(p.Vec))
		}
	}

	for _, p := range points {
		stored := Point{ID: p.ID, Vec: append([]float32(nil), p.Vec...), Meta: compactPayload(p.Meta)}
		replaced := false
		for i := range c.points {
			if c.points[i].ID == p.ID {
				c.points[i] = stored
				replaced = true
				break
			}
		}
		if !replaced {
			c.points = append(c.points, stored)
		}
	}
	return nil
}

// Search scores every point in the collection against query.
func (s *MemoryStore) Search(_ context.Context, collection string, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("failed to search points: %w: %s", ErrCollectionNotFound, collection)
	}

	results := make([]SearchResult, 0, len(c.points))
	for _, p := range c.points {
		meta := make(map[string]any, len(p.Meta))
		for key, v := range p.Meta {
			meta[key] = v
		}
		results = append(results, SearchResult{PointID: p.ID, Score: cosine(query, p.Vec), Meta: meta})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteByDocument removes every point whose document_id matches. A missing
// collection holds no points, so deleting from it succeeds.
func (s *MemoryStore) DeleteByDocument(_ context.Context, collection string, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	kept := c.points[:0]
	for _, p := range c.points {
		if id, _ := p.Meta[DocumentIDKey].(string); id == documentID {
			continue
		}
		kept = append(kept, p)
	}
	c.points = kept
	return nil
}

// EnsureCollection creates the collection or validates its vector size.
func (s *MemoryStore) EnsureCollection(_ context.Context, collection string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be greater than 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collection]; ok {
		if c.vectorSize != vectorSize {
			return fmt.Errorf("%w: expected %d, got %d", ErrVectorSizeMismatch, vectorSize, c.vectorSize)
		}
		return nil
	}
	s.collections[collection] = &memoryCollection{vectorSize: vectorSize}
	return nil
}

// ListCollections returns all collection names, sorted.
func (s *MemoryStore) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetCollectionInfo reports the vector size and point count.
func (s *MemoryStore) GetCollectionInfo(_ context.Context, collection string) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("failed to get collection info: %w: %s", ErrCollectionNotFound, collection)
	}
	return &CollectionInfo{VectorSize: c.vectorSize, PointsCount: len(c.points), Status: "green"}, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
