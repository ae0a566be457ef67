package vectorstore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinical-rag/internal/retry"
)

// RetryingStore bounds every call to the wrapped store with the retry policy.
type RetryingStore struct {
	next   VectorStore
	policy retry.Policy
}

// Ensure RetryingStore implements the interface.
var _ VectorStore = (*RetryingStore)(nil)

// WithRetry wraps store so each call gets a per-attempt timeout and a bounded
// number of attempts. Exhaustion surfaces as *retry.ExhaustedError.
func WithRetry(store VectorStore, policy retry.Policy) *RetryingStore {
	return &RetryingStore{next: store, policy: policy}
}

// classify stops retries for errors another attempt cannot fix.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCollectionNotFound) || errors.Is(err, ErrVectorSizeMismatch) {
		return retry.Permanent(err)
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition,
		codes.PermissionDenied, codes.Unauthenticated:
		return retry.Permanent(err)
	}
	return err
}

func (r *RetryingStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, r.policy, op, func(ctx context.Context) error {
		return classify(fn(ctx))
	})
}

// Upsert retries the wrapped Upsert.
func (r *RetryingStore) Upsert(ctx context.Context, collection string, points []Point) error {
	return r.do(ctx, "vectorstore.upsert", func(ctx context.Context) error {
		return r.next.Upsert(ctx, collection, points)
	})
}

// Search retries the wrapped Search.
func (r *RetryingStore) Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error) {
	var results []SearchResult
	err := r.do(ctx, "vectorstore.search", func(ctx context.Context) error {
		var err error
		results, err = r.next.Search(ctx, collection, query, k)
		return err
	})
	return results, err
}

// DeleteByDocument retries the wrapped DeleteByDocument.
func (r *RetryingStore) DeleteByDocument(ctx context.Context, collection string, documentID string) error {
	return r.do(ctx, "vectorstore.delete", func(ctx context.Context) error {
		return r.next.DeleteByDocument(ctx, collection, documentID)
	})
}

// EnsureCollection retries the wrapped EnsureCollection.
func (r *RetryingStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	return r.do(ctx, "vectorstore.ensure", func(ctx context.Context) error {
		return r.next.EnsureCollection(ctx, collection, vectorSize)
	})
}

// ListCollections retries the wrapped ListCollections.
func (r *RetryingStore) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := r.do(ctx, "vectorstore.list", func(ctx context.Context) error {
		var err error
		names, err = r.next.ListCollections(ctx)
		return err
	})
	return names, err
}

// GetCollectionInfo retries the wrapped GetCollectionInfo.
func (r *RetryingStore) GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	var info *CollectionInfo
	err := r.do(ctx, "vectorstore.info", func(ctx context.Context) error {
		var err error
		info, err = r.next.GetCollectionInfo(ctx, collection)
		return err
	})
	return info, err
}
