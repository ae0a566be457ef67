package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clinical-rag/internal/contextutil"
	"clinical-rag/internal/directory"
)

// Generator produces text from a system and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Engine answers clinical questions from the vector collections.
type Engine interface {
	// Ask retrieves evidence for q, generates an answer and reconciles its citations.
	Ask(ctx context.Context, q Query) (*Answer, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	dir       *directory.Directory
	resolver  *Resolver
	ranker    *Ranker
	builder   *ContextBuilder
	generator Generator
}

// NewEngine creates a new RAG engine.
func NewEngine(
	dir *directory.Directory,
	resolver *Resolver,
	ranker *Ranker,
	builder *ContextBuilder,
	generator Generator,
) Engine {
	return &ragEngine{
		dir:       dir,
		resolver:  resolver,
		ranker:    ranker,
		builder:   builder,
		generator: generator,
	}
}

// NoResultsText is the answer when no collection returned a hit.
func NoResultsText(clinicianName string) string {
	if clinicianName != "" {
		return fmt.Sprintf("I couldn't find specific protocols from %s. Please contact the office for details.", clinicianName)
	}
	return "I couldn't find an approved orthopedic source for that. Please contact your clinic."
}

// Ask answers a question using RAG.
func (e *ragEngine) Ask(ctx context.Context, q Query) (*Answer, error) {
	start := time.Now()
	logger := contextutil.LoggerFromContext(ctx)

	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidQuery)
	}
	actor := Actor(strings.ToUpper(strings.TrimSpace(string(q.Actor))))
	switch actor {
	case "":
		actor = ActorPatient
	case ActorPatient, ActorProvider:
	default:
		return nil, fmt.Errorf("%w: unknown actor %q", ErrInvalidQuery, q.Actor)
	}

	if err := CheckGuardrail(q.Question); err != nil {
		logger.WarnContext(ctx, "guardrail triggered", "actor", actor)
		return nil, err
	}

	res := e.resolver.Resolve(ctx, q.Context())
	logger.InfoContext(ctx, "resolved collections", "mode", res.Mode, "collections", res.Collections)

	ranked, err := e.ranker.Rank(ctx, q.Question, res)
	if err != nil {
		return nil, err
	}

	var clinicianName, bodyPart string
	switch res.Mode {
	case ModeClinician:
		clinicianName = e.dir.DisplayName(res.ClinicianID)
	case ModeBodyPart:
		// Casers keep state; one per call.
		bodyPart = cases.Title(language.English).String(strings.ReplaceAll(res.BodyPart, "_", " "))
	}

	answer := &Answer{Mode: res.Mode, Collections: res.Collections, Citations: []Citation{}}

	if len(ranked.Hits) == 0 {
		logger.InfoContext(ctx, "no search results found", "mode", res.Mode)
		answer.Text = NoResultsText(clinicianName)
		answer.LatencyMs = time.Since(start).Milliseconds()
		return answer, nil
	}

	ev := e.builder.Build(ctx, ranked.Hits, ranked.NumPrimary, clinicianName)
	system := SystemPrompt(actor, res.Mode, clinicianName, bodyPart)
	user := UserPrompt(q.Question, ev.Text)

	logger.DebugContext(ctx, "sending request to LLM",
		"system_prompt_length", len(system),
		"user_message_length", len(user),
		"sources", len(ranked.Hits),
	)

	raw, err := e.generator.Generate(ctx, system, user)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get LLM response", "error", err)
		return nil, fmt.Errorf("failed to get LLM response: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		raw = "I couldn't generate an answer."
	}

	rec := Reconcile(ctx, raw, ev)
	answer.Text = rec.Text
	answer.Citations = rec.Citations
	answer.FollowUpQuestion = rec.FollowUpQuestion
	answer.LatencyMs = time.Since(start).Milliseconds()

	logger.InfoContext(ctx, "RAG query completed",
		"mode", res.Mode,
		"hits", len(ranked.Hits),
		"citations", len(answer.Citations),
		"latency_ms", answer.LatencyMs,
	)
	return answer, nil
}
