package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinical-rag/internal/blobstore"
	"clinical-rag/internal/directory"
	"clinical-rag/internal/indexer"
	"clinical-rag/internal/rag"
	"clinical-rag/internal/storage"
	"clinical-rag/internal/vectorstore"
)

const testVectorSize = 4

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string, string) (string, error) {
	return "Follow the protocol (Source 1).", nil
}

func newTestDeps(t *testing.T) *Deps {
	t.Helper()

	db, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(db))
	statuses := storage.NewStatusRepo(db)

	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	dir := directory.Default()
	store := vectorstore.NewMemoryStore()
	resolver := rag.NewResolver(dir, store, "org_demo_chunks")
	engine := rag.NewEngine(
		dir,
		resolver,
		rag.NewRanker(stubEmbedder{}, store, testVectorSize),
		rag.NewContextBuilder(nil, time.Hour),
		stubGenerator{},
	)
	pipeline := indexer.NewPipeline(blobs, stubEmbedder{}, store, statuses, dir, testVectorSize)
	t.Cleanup(pipeline.Wait)

	return &Deps{
		Engine:            engine,
		Resolver:          resolver,
		Pipeline:          pipeline,
		Directory:         dir,
		VectorStore:       store,
		Statuses:          statuses,
		Blobs:             blobs,
		DefaultCollection: "org_demo_chunks",
		EmbeddingModel:    "test-embed",
	}
}

func TestRouter_Routes(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{
			name:       "POST /api/query with invalid body",
			method:     http.MethodPost,
			path:       "/api/query",
			body:       "{",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "GET /api/query method not allowed",
			method:     http.MethodGet,
			path:       "/api/query",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "emergency question",
			method:     http.MethodPost,
			path:       "/api/query",
			body:       `{"question":"crushing chest pain since surgery"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown actor",
			method:     http.MethodPost,
			path:       "/api/query",
			body:       `{"question":"when can I drive?","actor":"nurse"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "question with no evidence",
			method:     http.MethodPost,
			path:       "/api/query",
			body:       `{"question":"when can I drive?"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "ingest without document id",
			method:     http.MethodPost,
			path:       "/api/documents/ingest",
			body:       `{"collection":"dr_general_hip"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "ingest with unknown source type",
			method:     http.MethodPost,
			path:       "/api/documents/ingest",
			body:       `{"document_id":"a.pdf","source_type":"BLOG"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "sync ingest of a missing blob",
			method:     http.MethodPost,
			path:       "/api/documents/ingest?sync=true",
			body:       `{"document_id":"uploads/none.txt","collection":"dr_general_hip"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "status requires document id",
			method:     http.MethodGet,
			path:       "/api/documents/status",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "status of unknown document",
			method:     http.MethodGet,
			path:       "/api/documents/status?document_id=nope",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "collections",
			method:     http.MethodGet,
			path:       "/api/collections",
			wantStatus: http.StatusOK,
		},
		{
			name:       "clinicians",
			method:     http.MethodGet,
			path:       "/api/clinicians",
			wantStatus: http.StatusOK,
		},
		{
			name:       "collections of unknown clinician",
			method:     http.MethodGet,
			path:       "/api/clinicians/nobody/collections",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "specialties of unknown clinician",
			method:     http.MethodGet,
			path:       "/api/clinicians/nobody/specialties",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "specialties fall back to registry",
			method:     http.MethodGet,
			path:       "/api/clinicians/joshua_dines/specialties",
			wantStatus: http.StatusOK,
		},
		{
			name:       "health",
			method:     http.MethodGet,
			path:       "/api/health",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, "body %s", w.Body.String())
		})
	}
}

func TestRouter_EmergencyMessage(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"I took an overdose"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, rag.EmergencyMessage, resp.Error)
}

func TestRouter_IngestAndQuery(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)
	ctx := context.Background()

	key := "uploads/dr_joshua_dines_ucl/protocol.txt"
	text := "UCL Reconstruction Protocol\n\nNo throwing for 4 months after surgery."
	require.NoError(t, deps.Blobs.Put(ctx, key, []byte(text), map[string]string{blobstore.MetaOriginalFilename: "UCL Protocol.txt"}))

	body := `{"document_id":"` + key + `","source_type":"doctor_protocol","collection":"dr_joshua_dines_ucl"}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents/ingest?sync=true", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "ingest body %s", w.Body.String())

	var status storage.IngestStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, storage.StateDone, status.State)
	assert.NotZero(t, status.Chunks)
	assert.Equal(t, "Dr. Joshua Dines", status.Author)

	req = httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"question":"When can I throw?","actor":"PATIENT","clinician_id":"joshua_dines"}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "query body %s", w.Body.String())

	var answer rag.Answer
	require.NoError(t, json.NewDecoder(w.Body).Decode(&answer))
	assert.Equal(t, rag.ModeClinician, answer.Mode)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "Dr. Dines protocol", answer.Citations[0].DisplayLabel)
}

func TestRouter_UploadQueuesIngestion(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)

	body := &strings.Builder{}
	mw := newMultipart(t, body, "hip.md", "# Hip Arthroscopy\n\nCrutches for two weeks.", map[string]string{
		"collection":  "dr_general_hip",
		"source_type": "CLINICAL_GUIDELINE",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", strings.NewReader(body.String()))
	req.Header.Set("Content-Type", mw)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, "upload body %s", w.Body.String())

	var queued storage.IngestStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&queued))
	assert.Regexp(t, `^uploads/dr_general_hip/.+\.md$`, queued.DocumentID)

	deps.Pipeline.Wait()
	got, err := deps.Statuses.Get(context.Background(), queued.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, storage.StateDone, got.State, got.Error)
	assert.Equal(t, "hip.md", got.OriginalFilename)
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
