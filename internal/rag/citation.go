package rag

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"clinical-rag/internal/blobstore"
	"clinical-rag/internal/contextutil"
	"clinical-rag/internal/indexer"
)

// Evidence is the prompt context for one query together with its
// deduplicated citations.
type Evidence struct {
	// Text is the labeled source list sent to the generator.
	Text string
	// Citations holds one entry per distinct title, in first-seen order.
	Citations []Citation
	// Sources maps each 1-based source number to its index in Citations.
	Sources map[int]int
}

// ContextBuilder turns ranked hits into Evidence.
type ContextBuilder struct {
	signer     blobstore.URLSigner
	presignTTL time.Duration
}

// NewContextBuilder creates a builder. signer may be nil, in which case
// citations carry no display URL.
func NewContextBuilder(signer blobstore.URLSigner, presignTTL time.Duration) *ContextBuilder {
	return &ContextBuilder{signer: signer, presignTTL: presignTTL}
}

// Build numbers hits from 1 in ranked order. Every hit's text goes into the
// context; citations are deduplicated by title. clinicianName labels the
// first numPrimary hits as that clinician's protocol.
func (b *ContextBuilder) Build(ctx context.Context, hits []Hit, numPrimary int, clinicianName string) *Evidence {
	ev := &Evidence{Citations: []Citation{}, Sources: make(map[int]int, len(hits))}
	byTitle := make(map[string]int)

	var sb strings.Builder
	for i, h := range hits {
		n := i + 1
		title := h.Title()
		primary := clinicianName != "" && i < numPrimary

		if i > 0 {
			sb.WriteString("\n")
		}
		if primary {
			fmt.Fprintf(&sb, "[Source %d — %s's Protocol: %s]\n", n, clinicianName, title)
		} else {
			fmt.Fprintf(&sb, "[Source %d: %s]\n", n, title)
		}
		sb.WriteString(h.Text())
		sb.WriteString("\n")

		idx, ok := byTitle[title]
		if !ok {
			idx = len(ev.Citations)
			byTitle[title] = idx
			ev.Citations = append(ev.Citations, b.citation(ctx, h, primary, clinicianName))
		}
		ev.Sources[n] = idx
	}
	ev.Text = sb.String()
	return ev
}

func (b *ContextBuilder) citation(ctx context.Context, h Hit, primary bool, clinicianName string) Citation {
	c := Citation{
		Title:        h.Title(),
		DocumentID:   h.DocumentID(),
		Section:      h.str(indexer.PayloadSection),
		Author:       h.str(indexer.PayloadAuthor),
		DisplayLabel: DisplayLabel(primary, clinicianName),
	}
	if page, ok := h.intValue(indexer.PayloadPage); ok {
		c.Page = &page
	}
	if year, ok := h.intValue(indexer.PayloadPublicationYear); ok {
		c.PublicationYear = &year
	}

	if b.signer != nil && strings.HasPrefix(c.DocumentID, indexer.UploadPrefix) {
		url, err := b.signer.PresignGet(ctx, c.DocumentID, b.presignTTL)
		if err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "presign failed", "document_id", c.DocumentID, "error", err)
		} else {
			c.DocumentURL = url
		}
	}
	return c
}

// DisplayLabel is the short provenance shown next to a citation.
func DisplayLabel(primary bool, clinicianName string) string {
	if fields := strings.Fields(clinicianName); primary && len(fields) > 0 {
		return "Dr. " + fields[len(fields)-1] + " protocol"
	}
	return "Published research"
}

var (
	followUpPattern    = regexp.MustCompile(`(?m)\n*FOLLOW_UP_QUESTION:\s*(.+?)$`)
	sourcesUsedPattern = regexp.MustCompile(`(?s)\n*SOURCES_USED:.*$`)
	multiMarkerPattern = regexp.MustCompile(`\(Source\s+\d+(?:\s*,\s*(?:Source\s+)?\d+)+\)`)
	markerPattern      = regexp.MustCompile(`\(Source\s+(\d+)\)`)
	digitsPattern      = regexp.MustCompile(`\d+`)
)

// Reconciled is a generator answer with citations renumbered.
type Reconciled struct {
	Text             string
	Citations        []Citation
	FollowUpQuestion string
}

// Reconcile post-processes a generator answer. It extracts the follow-up
// question line, strips a trailing sources footer, expands joined markers
// like "(Source 1, 2)", and renumbers every "(Source N)" marker to the
// position of its citation among those actually cited. Markers with no
// mapping are removed. The returned citations are exactly the cited ones,
// in renumbered order; an answer without markers cites nothing.
func Reconcile(ctx context.Context, answer string, ev *Evidence) Reconciled {
	var out Reconciled

	if loc := followUpPattern.FindStringSubmatchIndex(answer); loc != nil {
		out.FollowUpQuestion = strings.TrimSpace(answer[loc[2]:loc[3]])
		answer = strings.TrimSpace(answer[:loc[0]])
	}
	answer = strings.TrimSpace(sourcesUsedPattern.ReplaceAllString(answer, ""))

	answer = multiMarkerPattern.ReplaceAllStringFunc(answer, func(m string) string {
		nums := digitsPattern.FindAllString(m, -1)
		markers := make([]string, len(nums))
		for i, n := range nums {
			markers[i] = "(Source " + n + ")"
		}
		return strings.Join(markers, " ")
	})

	// Old citation index to new 1-based number, in first-appearance order.
	renumber := make(map[int]int)
	var cited []Citation
	for _, m := range markerPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		idx, ok := ev.Sources[n]
		if !ok {
			continue
		}
		if _, seen := renumber[idx]; !seen {
			renumber[idx] = len(cited) + 1
			cited = append(cited, ev.Citations[idx])
		}
	}

	out.Text = rewriteMarkers(ctx, answer, func(n int) (int, bool) {
		idx, ok := ev.Sources[n]
		if !ok {
			return 0, false
		}
		return renumber[idx], true
	})
	if cited == nil {
		cited = []Citation{}
	}
	out.Citations = cited
	return out
}

// rewriteMarkers replaces each marker with its new number, or drops it
// together with one preceding space when lookup fails.
func rewriteMarkers(ctx context.Context, text string, lookup func(int) (int, bool)) string {
	var sb strings.Builder
	last := 0
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		n, err := strconv.Atoi(text[loc[2]:loc[3]])
		newNum, ok := lookup(n)
		if err != nil || !ok {
			contextutil.LoggerFromContext(ctx).DebugContext(ctx, "dropped unmappable citation", "marker", text[start:end])
			cut := start
			if cut > last && text[cut-1] == ' ' {
				cut--
			}
			sb.WriteString(text[last:cut])
			last = end
			continue
		}
		sb.WriteString(text[last:start])
		fmt.Fprintf(&sb, "(Source %d)", newNum)
		last = end
	}
	sb.WriteString(text[last:])
	return sb.String()
}
