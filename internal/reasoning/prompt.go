package reasoning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/visaflow/visaflow/internal/domain"
	"github.com/visaflow/visaflow/internal/rules"
)

// ConstructPrompt is deterministic for identical inputs: chunks keep their
// ranked order, facts are serialised with sorted keys, and the rule result is
// rendered from stable fields. Audit depends on replayability here.
func ConstructPrompt(chunks []domain.ChunkWithScore, agg rules.Aggregate, facts domain.Facts) string {
	return fmt.Sprintf(verdictPrompt, formatChunks(chunks), formatFacts(facts), formatRuleCheck(agg))
}

func formatChunks(chunks []domain.ChunkWithScore) string {
	if len(chunks) == 0 {
		return noContextNote
	}
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%d] %s", i+1, strings.TrimSpace(c.Text))
	}
	return sb.String()
}

func formatFacts(facts domain.Facts) string {
	if len(facts) == 0 {
		return "(none recorded)"
	}
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: %s", k, facts[k].String())
	}
	return sb.String()
}

func formatRuleCheck(agg rules.Aggregate) string {
	return fmt.Sprintf("outcome=%s, %s", agg.Outcome, agg.Summary())
}
