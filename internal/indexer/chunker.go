package indexer

import (
	"regexp"
	"strings"

	"clinical-rag/internal/extract"
)

const (
	// DefaultMaxChars bounds a chunk, in characters.
	DefaultMaxChars = 1800
	// DefaultOverlap is how far the next window reaches back before a soft cut.
	DefaultOverlap = 200

	// Soft cut points are only considered this far into a window.
	softCutFraction = 0.4
	// A sentence cut earlier than this fraction of the window is rejected.
	sentenceCutFraction = 0.6

	sectionScanChars = 200
	headerProbeChars = 40
)

const headerKeywords = `phases?|weeks?|days?|months?|stages?|precautions?|weight[- ]?bearing|rom|range of motion|braces?|bracing|exercises?|rehab|rehabilitation|return|activity restrictions?`

var (
	// headerStart matches text that begins with a section-header keyword.
	headerStart = regexp.MustCompile(`(?i)^[ \t]*(?:` + headerKeywords + `)\b`)
	// sectionLine captures a header line up to an optional colon.
	sectionLine = regexp.MustCompile(`(?im)^[ \t]*((?:` + headerKeywords + `)\b[^:\n]{0,60})`)
)

// Split breaks text into overlapping chunks of at most maxChars characters.
//
// Each window prefers, in order: a newline that precedes a section header, a
// paragraph break, and the last ". " at least 60% into the window. Header and
// paragraph cuts only count past 40% of the window. Without any of these the
// window is cut at its hard boundary and the next window starts there with no
// overlap; otherwise the next window starts overlap characters before the cut.
func Split(text string, maxChars, overlap int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = 0
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	softMin := int(float64(maxChars) * softCutFraction)
	sentenceMin := int(float64(maxChars) * sentenceCutFraction)

	var chunks []string
	for i := 0; i < n; {
		j := min(n, i+maxChars)
		cut := j
		if j < n {
			cut = findCut(runes, i, j, softMin, sentenceMin)
		}

		if piece := strings.TrimSpace(string(runes[i:cut])); piece != "" {
			chunks = append(chunks, piece)
		}
		if cut >= n {
			break
		}
		if cut == j {
			i = j
			continue
		}

		next := max(cut-overlap, 0)
		if next <= i {
			next = cut
		}
		i = next
	}
	return chunks
}

// findCut returns the end (exclusive) of the window [i, j).
func findCut(runes []rune, i, j, softMin, sentenceMin int) int {
	lo := i + softMin

	for k := j - 1; k >= lo; k-- {
		if runes[k] == '\n' && startsWithHeader(runes, k+1) {
			return k + 1
		}
	}

	for k := j - 2; k >= lo; k-- {
		if runes[k] == '\n' && runes[k+1] == '\n' {
			return k + 1
		}
	}

	for k := j - 2; k >= i; k-- {
		if runes[k] == '.' && runes[k+1] == ' ' {
			if k >= i+sentenceMin {
				return k + 1
			}
			break
		}
	}
	return j
}

func startsWithHeader(runes []rune, at int) bool {
	if at >= len(runes) {
		return false
	}
	end := min(len(runes), at+headerProbeChars)
	return headerStart.MatchString(string(runes[at:end]))
}

// DetectSection returns the first section-header line found in the first
// characters of a chunk, or "" when there is none.
func DetectSection(chunk string) string {
	head := chunk
	if r := []rune(chunk); len(r) > sectionScanChars {
		head = string(r[:sectionScanChars])
	}
	m := sectionLine.FindStringSubmatch(head)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ChunkPages splits every page and numbers the chunks across the whole document.
func ChunkPages(pages []extract.Page, maxChars, overlap int) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		for _, piece := range Split(page.Text, maxChars, overlap) {
			chunks = append(chunks, Chunk{
				Index:   len(chunks),
				Page:    page.Number,
				Section: DetectSection(piece),
				Text:    piece,
			})
		}
	}
	return chunks
}
