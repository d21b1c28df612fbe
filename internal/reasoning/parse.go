package reasoning

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/visaflow/visaflow/internal/domain"
)

// Parsing here is deliberately tolerant: a missing or malformed field
// resolves to unknown, never to a guessed default. Strengthening that
// contract needs product input.

const citationExcerptLimit = 240

var citationIndexPattern = regexp.MustCompile(`\[(\d+)\]`)

// ExtractOutcome scans the response for a VERDICT marker. Anything that is
// not exactly one of the three outcomes resolves to unknown.
func ExtractOutcome(responseText string) domain.Outcome {
	value, ok := fieldValue(responseText, "VERDICT")
	if !ok {
		return domain.OutcomeUnknown
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if !domain.ValidOutcome(value) {
		return domain.OutcomeUnknown
	}
	return domain.Outcome(value)
}

// ExtractConfidence parses the CONFIDENCE marker. Returns ok=false when the
// field is absent, unparsable, or outside [0,1].
func ExtractConfidence(responseText string) (float64, bool) {
	value, ok := fieldValue(responseText, "CONFIDENCE")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || n < 0 || n > 1 {
		return 0, false
	}
	return n, true
}

// ExtractSummary returns the SUMMARY field, or the whole trimmed response
// when no marker is present so the audit log is never empty.
func ExtractSummary(responseText string) string {
	if value, ok := fieldValue(responseText, "SUMMARY"); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(responseText)
}

// ExtractCitations maps bracketed 1-based extract numbers on the CITATIONS
// line back to the context chunks. Out-of-range numbers are dropped; each
// chunk is cited at most once.
func ExtractCitations(responseText string, chunks []domain.ChunkWithScore) []domain.Citation {
	value, ok := fieldValue(responseText, "CITATIONS")
	if !ok || len(chunks) == 0 {
		return nil
	}

	seen := map[int]bool{}
	var citations []domain.Citation
	for _, match := range citationIndexPattern.FindAllStringSubmatch(value, -1) {
		idx, err := strconv.Atoi(match[1])
		if err != nil || idx < 1 || idx > len(chunks) || seen[idx] {
			continue
		}
		seen[idx] = true

		chunk := chunks[idx-1]
		excerpt := truncateExcerpt(chunk.Text)
		citations = append(citations, domain.Citation{
			DocumentVersionID: chunk.DocumentVersionID,
			Excerpt:           excerpt,
			RelevanceScore:    chunk.Score,
		})
	}
	return citations
}

// truncateExcerpt caps an excerpt at citationExcerptLimit bytes, backing up
// so a multi-byte rune is never cut in half.
func truncateExcerpt(text string) string {
	if len(text) <= citationExcerptLimit {
		return text
	}
	cut := citationExcerptLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// fieldValue finds the first line starting with "NAME:" (case-insensitive)
// and returns the remainder of that line.
func fieldValue(text, name string) (string, bool) {
	prefix := name + ":"
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < len(prefix) {
			continue
		}
		if strings.EqualFold(trimmed[:len(prefix)], prefix) {
			return trimmed[len(prefix):], true
		}
	}
	return "", false
}
