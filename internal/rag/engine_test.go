package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinical-rag/internal/indexer"
	"clinical-rag/internal/vectorstore"
)

type fakeGenerator struct {
	answer string
	err    error
	calls  int
	system string
	user   string
}

func (g *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	g.calls++
	g.system = system
	g.user = user
	return g.answer, g.err
}

func addChunk(t *testing.T, store *vectorstore.MemoryStore, collection, id, title, text string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, collection, testVectorSize))
	require.NoError(t, store.Upsert(ctx, collection, []vectorstore.Point{{
		ID:  id,
		Vec: []float32{1, 0, 0},
		Meta: map[string]any{
			indexer.PayloadDocumentID: id + ".pdf",
			indexer.PayloadTitle:      title,
			indexer.PayloadText:       text,
		},
	}}))
}

func newTestEngine(t *testing.T, store *vectorstore.MemoryStore, gen Generator) Engine {
	t.Helper()
	dir := testDirectory(t)
	return NewEngine(
		dir,
		NewResolver(dir, store, "org_demo_chunks"),
		NewRanker(&countingEmbedder{}, store, testVectorSize),
		NewContextBuilder(nil, 0),
		gen,
	)
}

func TestEngine_Ask_ClinicianAnswer(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	addChunk(t, store, "dr_ann_lee_acl", "p1", "ACL Protocol", "Toe-touch weight-bearing for 2 weeks.")
	addChunk(t, store, "dr_general_acl_rct", "r1", "ACL RCT", "Bracing did not change outcomes.")

	gen := &fakeGenerator{answer: "Toe-touch for 2 weeks (Source 2). Bracing is optional (Source 1, Source 2).\n\nFOLLOW_UP_QUESTION: Was a meniscus repair also done?"}
	engine := newTestEngine(t, store, gen)

	answer, err := engine.Ask(context.Background(), Query{
		Question:    "How long is toe-touch weight-bearing?",
		Actor:       "provider",
		ClinicianID: "ann_lee",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.system, "Dr. Ann Lee's protocols")
	assert.Contains(t, gen.user, "[Source 1 — Dr. Ann Lee's Protocol: ACL Protocol]")
	assert.Contains(t, gen.user, "[Source 2: ACL RCT]")
	assert.Contains(t, gen.user, "Question: How long is toe-touch weight-bearing?")

	assert.Equal(t, ModeClinician, answer.Mode)
	assert.Equal(t, []string{"dr_ann_lee_acl", "dr_general_acl_rct"}, answer.Collections)
	assert.Equal(t, "Toe-touch for 2 weeks (Source 1). Bracing is optional (Source 2) (Source 1).", answer.Text)
	require.Len(t, answer.Citations, 2)
	assert.Equal(t, "ACL RCT", answer.Citations[0].Title)
	assert.Equal(t, "Published research", answer.Citations[0].DisplayLabel)
	assert.Equal(t, "ACL Protocol", answer.Citations[1].Title)
	assert.Equal(t, "Dr. Lee protocol", answer.Citations[1].DisplayLabel)
	assert.Equal(t, "Was a meniscus repair also done?", answer.FollowUpQuestion)
}

func TestEngine_Ask_BodyPartPrompt(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	addChunk(t, store, "dr_general_knee_lower_leg", "k1", "Shin Splints", "Rest and ice.")

	gen := &fakeGenerator{answer: "Rest and ice (Source 1)."}
	answer, err := newTestEngine(t, store, gen).Ask(context.Background(), Query{
		Question: "What helps shin splints?",
		BodyPart: "lower_leg",
	})
	require.NoError(t, err)

	assert.Equal(t, ModeBodyPart, answer.Mode)
	assert.Contains(t, gen.system, "patient education assistant for Lower Leg conditions")
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "Shin Splints", answer.Citations[0].Title)
}

func TestEngine_Ask_NoResults(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{
			name:  "clinician",
			query: Query{Question: "When can I run?", ClinicianID: "bo_chen"},
			want:  NoResultsText("Dr. Bo Chen"),
		},
		{
			name:  "default",
			query: Query{Question: "When can I run?"},
			want:  NoResultsText(""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{answer: "should not be used"}
			answer, err := newTestEngine(t, vectorstore.NewMemoryStore(), gen).Ask(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, answer.Text)
			assert.Empty(t, answer.Citations)
			assert.Zero(t, gen.calls)
		})
	}
	assert.Contains(t, NoResultsText("Dr. Bo Chen"), "Dr. Bo Chen")
}

func TestEngine_Ask_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr error
	}{
		{name: "empty question", query: Query{Question: "   "}, wantErr: ErrInvalidQuery},
		{name: "unknown actor", query: Query{Question: "q", Actor: "nurse"}, wantErr: ErrInvalidQuery},
		{name: "emergency", query: Query{Question: "I have chest pain after surgery"}, wantErr: ErrGuardrail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			_, err := newTestEngine(t, vectorstore.NewMemoryStore(), gen).Ask(context.Background(), tt.query)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, gen.calls)
		})
	}
}

func TestEngine_Ask_GeneratorFailure(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	addChunk(t, store, "org_demo_chunks", "d1", "Demo", "text")

	cause := errors.New("upstream 503")
	_, err := newTestEngine(t, store, &fakeGenerator{err: cause}).Ask(context.Background(), Query{Question: "q"})
	assert.ErrorIs(t, err, cause)
}

func TestEngine_Ask_EmptyGeneration(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	addChunk(t, store, "org_demo_chunks", "d1", "Demo", "text")

	answer, err := newTestEngine(t, store, &fakeGenerator{answer: "  \n"}).Ask(context.Background(), Query{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "I couldn't generate an answer.", answer.Text)
	assert.Empty(t, answer.Citations)
}

func TestCheckGuardrail(t *testing.T) {
	tests := []struct {
		question string
		tripped  bool
	}{
		{question: "Shortness of Breath after my ACL repair", tripped: true},
		{question: "I feel suicidal", tripped: true},
		{question: "took an OVERDOSE of ibuprofen", tripped: true},
		{question: "When can I start running after ACL reconstruction?", tripped: false},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			err := CheckGuardrail(tt.question)
			if tt.tripped {
				assert.ErrorIs(t, err, ErrGuardrail)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	tests := []struct {
		name     string
		actor    Actor
		mode     Mode
		contains string
	}{
		{name: "clinician provider", actor: ActorProvider, mode: ModeClinician, contains: "clinical assistant presenting Dr. A's protocols"},
		{name: "clinician patient", actor: ActorPatient, mode: ModeClinician, contains: "Dr. A's office"},
		{name: "body part provider", actor: ActorProvider, mode: ModeBodyPart, contains: "decision support assistant for Knee conditions"},
		{name: "body part patient", actor: ActorPatient, mode: ModeBodyPart, contains: "patient education assistant for Knee conditions"},
		{name: "default provider", actor: ActorProvider, mode: ModeDefault, contains: "clinical decision support assistant"},
		{name: "default patient", actor: ActorPatient, mode: ModeDefault, contains: "patient education assistant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SystemPrompt(tt.actor, tt.mode, "Dr. A", "Knee")
			assert.Contains(t, got, tt.contains)
			assert.Contains(t, got, "(Source N)")
			assert.Contains(t, got, "FOLLOW_UP_QUESTION:")
		})
	}
}
