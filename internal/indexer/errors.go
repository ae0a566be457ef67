package indexer

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest rejects an ingestion request missing required fields.
var ErrInvalidRequest = errors.New("invalid ingestion request")

// EmptyDocumentError reports a document that produced no chunks.
type EmptyDocumentError struct {
	DocumentID string
	Reason     string
}

func (e *EmptyDocumentError) Error() string {
	return fmt.Sprintf("document %s has no extractable text: %s", e.DocumentID, e.Reason)
}

// EmbeddingMismatchError reports an embedder that returned the wrong number of vectors.
type EmbeddingMismatchError struct {
	DocumentID string
	Chunks     int
	Vectors    int
}

func (e *EmbeddingMismatchError) Error() string {
	return fmt.Sprintf("document %s: embedding count mismatch: %d chunks, %d vectors", e.DocumentID, e.Chunks, e.Vectors)
}

// ReplaceIncompleteError reports an insert that failed after the document's
// previous chunks were already deleted. The document is missing from the
// collection until it is ingested again.
type ReplaceIncompleteError struct {
	DocumentID string
	Collection string
	Err        error
}

func (e *ReplaceIncompleteError) Error() string {
	return fmt.Sprintf("document %s: previous chunks deleted from %s but insert failed: %v", e.DocumentID, e.Collection, e.Err)
}

func (e *ReplaceIncompleteError) Unwrap() error {
	return e.Err
}
