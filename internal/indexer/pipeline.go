package indexer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinical-rag/internal/blobstore"
	"clinical-rag/internal/contextutil"
	"clinical-rag/internal/directory"
	"clinical-rag/internal/extract"
	"clinical-rag/internal/storage"
	"clinical-rag/internal/vectorstore"
)

// Embedder turns chunk texts into vectors, one per text, in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Request describes one document to ingest.
type Request struct {
	DocumentID string
	Data       []byte // Fetched from the blob store when nil
	SourceType SourceType
	Collection string
	Filename   string // Original filename; read from blob metadata when empty
}

// Result summarizes a completed ingestion.
type Result struct {
	DocumentID string
	Collection string
	Chunks     int
	Metadata   extract.Metadata
}

// Pipeline turns uploaded documents into embedded chunks in the vector store.
type Pipeline struct {
	blobs       blobstore.Store
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	statuses    storage.StatusStore
	directory   *directory.Directory
	vectorSize  int
	maxChars    int
	overlap     int

	locks documentLocks
	wg    sync.WaitGroup
}

// documentLocks serializes the replace of one document in one collection.
type documentLocks struct {
	mu    sync.Mutex
	locks map[string]*documentLock
}

type documentLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until key is free and returns its unlock func.
func (l *documentLocks) lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*documentLock)
	}
	dl, ok := l.locks[key]
	if !ok {
		dl = &documentLock{}
		l.locks[key] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// NewPipeline creates a new ingestion pipeline. blobs may be nil when every
// request carries its bytes.
func NewPipeline(
	blobs blobstore.Store,
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	statuses storage.StatusStore,
	dir *directory.Directory,
	vectorSize int,
) *Pipeline {
	return &Pipeline{
		blobs:       blobs,
		embedder:    embedder,
		vectorStore: vectorStore,
		statuses:    statuses,
		directory:   dir,
		vectorSize:  vectorSize,
		maxChars:    DefaultMaxChars,
		overlap:     DefaultOverlap,
	}
}

// Submit records the document as queued and ingests it in the background.
// The job outlives ctx's cancellation but keeps its values (logger).
func (p *Pipeline) Submit(ctx context.Context, req Request) error {
	if err := validate(req); err != nil {
		return err
	}
	if err := p.statuses.Save(ctx, &storage.IngestStatus{
		DocumentID: req.DocumentID,
		Collection: req.Collection,
		SourceType: string(normalizeSourceType(req.SourceType)),
		State:      storage.StateQueued,
	}); err != nil {
		return fmt.Errorf("failed to queue ingestion: %w", err)
	}

	jobCtx := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Failures are recorded in the status store and logged.
		_, _ = p.Ingest(jobCtx, req)
	}()
	return nil
}

// Wait blocks until every submitted ingestion has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Status returns the recorded state of a document.
func (p *Pipeline) Status(ctx context.Context, documentID string) (*storage.IngestStatus, error) {
	return p.statuses.Get(ctx, documentID)
}

func validate(req Request) error {
	if strings.TrimSpace(req.DocumentID) == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidRequest)
	}
	return nil
}

func normalizeSourceType(s SourceType) SourceType {
	s = SourceType(strings.ToUpper(strings.TrimSpace(string(s))))
	if s == "" {
		return SourceOther
	}
	return s
}

// Ingest extracts, chunks, embeds and writes one document, replacing any
// chunks previously stored for the same document ID in the collection.
//
// The old chunks are deleted only after every new vector is ready. A failed
// delete aborts before any insert; a failed insert after the delete returns
// *ReplaceIncompleteError. Concurrent ingestions of the same document into
// the same collection run their delete and insert one at a time.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx).With("document_id", req.DocumentID, "collection", req.Collection)

	if err := validate(req); err != nil {
		return nil, err
	}
	sourceType := normalizeSourceType(req.SourceType)

	status := &storage.IngestStatus{
		DocumentID: req.DocumentID,
		Collection: req.Collection,
		SourceType: string(sourceType),
		State:      storage.StateProcessing,
	}
	p.saveStatus(ctx, status)
	logger.InfoContext(ctx, "ingestion started", "source_type", sourceType)

	result, err := p.ingest(ctx, req, sourceType, status)
	if err != nil {
		status.State = storage.StateError
		status.Error = err.Error()
		p.saveStatus(ctx, status)

		var incomplete *ReplaceIncompleteError
		if errors.As(err, &incomplete) {
			logger.ErrorContext(ctx, "replace incomplete", "error", err)
		}
		logger.ErrorContext(ctx, "ingestion failed", "error", err)
		return nil, err
	}

	status.State = storage.StateDone
	status.Chunks = result.Chunks
	p.saveStatus(ctx, status)
	logger.InfoContext(ctx, "ingestion completed", "chunks", result.Chunks, "title", result.Metadata.Title)
	return result, nil
}

func (p *Pipeline) ingest(ctx context.Context, req Request, sourceType SourceType, status *storage.IngestStatus) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	data := req.Data
	if data == nil {
		if p.blobs == nil {
			return nil, errors.New("no document bytes and no blob store configured")
		}
		var err error
		data, err = p.blobs.Get(ctx, req.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch document: %w", err)
		}
	}

	filename := p.originalFilename(ctx, req)
	status.OriginalFilename = filename

	format := extract.DetectFormat(filename, data)
	if format == extract.FormatUnknown {
		format = extract.DetectFormat(req.DocumentID, data)
	}

	meta := extract.ExtractMetadata(data, format, filename)
	if meta.Title == "" {
		meta.Title = path.Base(filename)
	}
	if meta.Title == "" || meta.Title == "." || meta.Title == "/" {
		meta.Title = path.Base(req.DocumentID)
	}
	meta.Author = p.authorFor(req.Collection, sourceType, meta.Author)

	status.Title = meta.Title
	status.Author = meta.Author
	status.PublicationYear = meta.Year

	pages, err := extract.ExtractText(data, format)
	if err != nil {
		return nil, &EmptyDocumentError{DocumentID: req.DocumentID, Reason: err.Error()}
	}
	chunks := ChunkPages(pages, p.maxChars, p.overlap)
	if len(chunks) == 0 {
		return nil, &EmptyDocumentError{DocumentID: req.DocumentID, Reason: "no text found (scanned or empty document)"}
	}
	logger.DebugContext(ctx, "document chunked", "chunks", len(chunks), "format", format)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, &EmbeddingMismatchError{DocumentID: req.DocumentID, Chunks: len(chunks), Vectors: len(vectors)}
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectorstore.Point{
			ID:   uuid.NewString(),
			Vec:  vectors[i],
			Meta: chunkPayload(req, sourceType, filename, meta, c),
		}
	}

	unlock := p.locks.lock(req.Collection + "\x00" + req.DocumentID)
	defer unlock()

	if err := p.vectorStore.EnsureCollection(ctx, req.Collection, p.vectorSize); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	// Last point at which cancellation leaves the previous chunks intact.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.vectorStore.DeleteByDocument(ctx, req.Collection, req.DocumentID); err != nil {
		return nil, fmt.Errorf("failed to delete previous chunks: %w", err)
	}
	if err := p.vectorStore.Upsert(ctx, req.Collection, points); err != nil {
		return nil, &ReplaceIncompleteError{DocumentID: req.DocumentID, Collection: req.Collection, Err: err}
	}

	return &Result{
		DocumentID: req.DocumentID,
		Collection: req.Collection,
		Chunks:     len(chunks),
		Metadata:   meta,
	}, nil
}

// originalFilename prefers the request, then blob metadata, then the key itself.
func (p *Pipeline) originalFilename(ctx context.Context, req Request) string {
	if req.Filename != "" {
		return req.Filename
	}
	if p.blobs != nil {
		meta, err := p.blobs.Head(ctx, req.DocumentID)
		if err == nil && meta[blobstore.MetaOriginalFilename] != "" {
			return meta[blobstore.MetaOriginalFilename]
		}
		if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to read blob metadata", "document_id", req.DocumentID, "error", err)
		}
	}
	return path.Base(req.DocumentID)
}

// authorFor forces the owning clinician's name onto non-research documents
// in clinician-owned collections.
func (p *Pipeline) authorFor(collection string, sourceType SourceType, extracted string) string {
	if p.directory == nil || sourceType.IsResearch() {
		return extracted
	}
	if owner, ok := p.directory.Owner(collection); ok {
		return p.directory.DisplayName(owner.ID)
	}
	return extracted
}

func chunkPayload(req Request, sourceType SourceType, filename string, meta extract.Metadata, c Chunk) map[string]any {
	payload := map[string]any{
		PayloadDocumentID:       req.DocumentID,
		PayloadCollection:       req.Collection,
		PayloadSourceType:       string(sourceType),
		PayloadPrecedence:       sourceType.Precedence(),
		PayloadSection:          c.Section,
		PayloadText:             c.Text,
		PayloadChunkIndex:       c.Index,
		PayloadTitle:            meta.Title,
		PayloadAuthor:           meta.Author,
		PayloadOriginalFilename: filename,
	}
	if c.Page > 0 {
		payload[PayloadPage] = c.Page
	}
	if meta.Year > 0 {
		payload[PayloadPublicationYear] = meta.Year
	}
	return payload
}

func (p *Pipeline) saveStatus(ctx context.Context, status *storage.IngestStatus) {
	status.UpdatedAt = time.Time{}
	if err := p.statuses.Save(ctx, status); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to save ingest status",
			"document_id", status.DocumentID, "state", status.State, "error", err)
	}
}
