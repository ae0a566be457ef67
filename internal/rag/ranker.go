package rag

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"clinical-rag/internal/contextutil"
	"clinical-rag/internal/vectorstore"
)

const (
	// DefaultPerCollectionK is the number of hits requested from each collection.
	DefaultPerCollectionK = 8
	// MaxPrimaryHits and MaxSupplementaryHits bound clinician-mode results.
	MaxPrimaryHits       = 8
	MaxSupplementaryHits = 7
	// BodyPartLimit and DefaultLimit bound the flat modes.
	BodyPartLimit = 12
	DefaultLimit  = 8

	maxParallelSearches = 8
)

// QueryEmbedder embeds one query text.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CollectionSearchError reports a collection whose search failed. It is
// logged and the collection contributes no hits.
type CollectionSearchError struct {
	Collection string
	Err        error
}

func (e *CollectionSearchError) Error() string {
	return fmt.Sprintf("search in collection %s failed: %v", e.Collection, e.Err)
}

func (e *CollectionSearchError) Unwrap() error {
	return e.Err
}

// Ranker searches every resolved collection and fuses the hits.
type Ranker struct {
	embedder   QueryEmbedder
	store      vectorstore.VectorStore
	vectorSize int
	k          int
}

// NewRanker creates a ranker. vectorSize is used to create missing collections.
func NewRanker(embedder QueryEmbedder, store vectorstore.VectorStore, vectorSize int) *Ranker {
	return &Ranker{embedder: embedder, store: store, vectorSize: vectorSize, k: DefaultPerCollectionK}
}

// Rank embeds the question once, searches each collection in res and fuses
// the hits by res.Mode. Only a failed query embedding is returned as an
// error; per-collection failures are logged and skipped.
func (r *Ranker) Rank(ctx context.Context, question string, res *Resolution) (*Ranked, error) {
	logger := contextutil.LoggerFromContext(ctx)

	ranked := &Ranked{Mode: res.Mode, Hits: []Hit{}}
	if len(res.Collections) == 0 {
		return ranked, nil
	}

	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	perCollection := make([][]Hit, len(res.Collections))
	var g errgroup.Group
	g.SetLimit(maxParallelSearches)
	for i, collection := range res.Collections {
		g.Go(func() error {
			hits, err := r.searchCollection(ctx, collection, vector)
			if err != nil {
				searchErr := &CollectionSearchError{Collection: collection, Err: err}
				logger.WarnContext(ctx, "collection search failed", "collection", collection, "error", searchErr)
				return nil
			}
			perCollection[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	var all []Hit
	counts := make(map[string]int, len(res.Collections))
	for i, hits := range perCollection {
		counts[res.Collections[i]] = len(hits)
		all = append(all, hits...)
	}

	ranked.Hits, ranked.NumPrimary = Fuse(res.Mode, all, res.Own)

	logger.InfoContext(ctx, "ranked hits",
		"mode", res.Mode,
		"hits", len(ranked.Hits),
		"primary", ranked.NumPrimary,
		"hits_per_collection", counts,
	)
	return ranked, nil
}

func (r *Ranker) searchCollection(ctx context.Context, collection string, vector []float32) ([]Hit, error) {
	if err := r.store.EnsureCollection(ctx, collection, r.vectorSize); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	results, err := r.store.Search(ctx, collection, vector, r.k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(results))
	for i, res := range results {
		hits[i] = Hit{PointID: res.PointID, Score: res.Score, Collection: collection, Payload: res.Meta}
	}
	return hits, nil
}

// Fuse orders hits for the prompt. In clinician mode hits from the
// clinician's own collections come first (up to MaxPrimaryHits, by score),
// followed by up to MaxSupplementaryHits others; it returns the number of
// primary hits. Shared collections are supplementary even when their name
// extends the clinician's prefix. The flat modes keep the best BodyPartLimit
// or DefaultLimit hits by score. Equal scores keep input order.
func Fuse(mode Mode, hits []Hit, own []string) ([]Hit, int) {
	if mode == ModeClinician {
		isOwn := make(map[string]bool, len(own))
		for _, name := range own {
			isOwn[name] = true
		}
		var primary, supplementary []Hit
		for _, h := range hits {
			if isOwn[h.Collection] {
				primary = append(primary, h)
			} else {
				supplementary = append(supplementary, h)
			}
		}
		primary = topByScore(primary, MaxPrimaryHits)
		supplementary = topByScore(supplementary, MaxSupplementaryHits)
		out := make([]Hit, 0, len(primary)+len(supplementary))
		out = append(out, primary...)
		out = append(out, supplementary...)
		return out, len(primary)
	}

	limit := DefaultLimit
	if mode == ModeBodyPart {
		limit = BodyPartLimit
	}
	return topByScore(hits, limit), 0
}

func topByScore(hits []Hit, limit int) []Hit {
	sorted := make([]Hit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
