package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_status_store.go -package=mocks clinical-rag/internal/storage StatusStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// StatusStore records ingestion progress per document.
type StatusStore interface {
	// Save inserts or replaces the status of status.DocumentID.
	Save(ctx context.Context, status *IngestStatus) error
	// Get returns the status of a document.
	// Returns nil and ErrNotFound if not found.
	Get(ctx context.Context, documentID string) (*IngestStatus, error)
	// ListByCollection returns every document recorded for a collection,
	// ordered by document ID.
	ListByCollection(ctx context.Context, collection string) ([]*IngestStatus, error)
}

// StatusRepo is the SQLite StatusStore.
type StatusRepo struct {
	db *sql.DB
}

// NewStatusRepo creates a new StatusRepo.
func NewStatusRepo(db *sql.DB) *StatusRepo {
	return &StatusRepo{db: db}
}

const statusColumns = "document_id, collection, source_type, state, error, title, author, publication_year, original_filename, chunks, updated_at"

// Save inserts or replaces the status row. UpdatedAt is set to now when zero.
func (r *StatusRepo) Save(ctx context.Context, status *IngestStatus) error {
	if status.DocumentID == "" {
		return errors.New("document id is required")
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ingest_status (`+statusColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (document_id) DO UPDATE SET
		 collection = excluded.collection, source_type = excluded.source_type,
		 state = excluded.state, error = excluded.error, title = excluded.title,
		 author = excluded.author, publication_year = excluded.publication_year,
		 original_filename = excluded.original_filename, chunks = excluded.chunks,
		 updated_at = excluded.updated_at`,
		status.DocumentID, status.Collection, status.SourceType, string(status.State), status.Error,
		status.Title, status.Author, status.PublicationYear, status.OriginalFilename, status.Chunks,
		status.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save ingest status: %w", err)
	}
	return nil
}

// Get returns the status of a document.
func (r *StatusRepo) Get(ctx context.Context, documentID string) (*IngestStatus, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+statusColumns+" FROM ingest_status WHERE document_id = ?", documentID)

	status, err := scanStatus(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest status: %w", err)
	}
	return status, nil
}

// ListByCollection returns the statuses recorded for a collection.
func (r *StatusRepo) ListByCollection(ctx context.Context, collection string) ([]*IngestStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+statusColumns+" FROM ingest_status WHERE collection = ? ORDER BY document_id", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest status: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*IngestStatus
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest status: %w", err)
		}
		out = append(out, status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingest status: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(row rowScanner) (*IngestStatus, error) {
	var status IngestStatus
	var state, updatedAt string
	var sourceType, errMsg, title, author, originalName sql.NullString
	var year sql.NullInt64
	if err := row.Scan(&status.DocumentID, &status.Collection, &sourceType, &state, &errMsg,
		&title, &author, &year, &originalName, &status.Chunks, &updatedAt); err != nil {
		return nil, err
	}

	status.State = IngestState(state)
	status.SourceType = sourceType.String
	status.Error = errMsg.String
	status.Title = title.String
	status.Author = author.String
	status.PublicationYear = int(year.Int64)
	status.OriginalFilename = originalName.String

	ts, err := parseTimestamp(updatedAt)
	if err != nil {
		return nil, err
	}
	status.UpdatedAt = ts
	return &status, nil
}

// parseTimestamp accepts what Save writes and SQLite's CURRENT_TIMESTAMP format.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
	}
	return t, nil
}
