package reasoning

import (
	"strings"
	"testing"

	"github.com/visaflow/visaflow/internal/domain"
	"github.com/visaflow/visaflow/internal/rules"
)

func TestConstructPrompt_Deterministic(t *testing.T) {
	chunks := []domain.ChunkWithScore{
		{Chunk: domain.Chunk{Text: "salary threshold guidance"}, Score: 0.9},
		{Chunk: domain.Chunk{Text: "sponsorship guidance"}, Score: 0.8},
	}
	facts := domain.Facts{
		"salary":     domain.NumberValue(42000),
		"has_degree": domain.BoolValue(true),
		"visa_route": domain.StringValue("skilled_worker"),
	}
	agg := rules.Aggregate{Outcome: domain.OutcomeEligible, Confidence: 1.0, Passed: 2, TotalEvaluable: 2}

	first := ConstructPrompt(chunks, agg, facts)
	for i := 0; i < 10; i++ {
		if got := ConstructPrompt(chunks, agg, facts); got != first {
			t.Fatal("identical inputs must produce an identical prompt")
		}
	}
}

func TestConstructPrompt_FactsSorted(t *testing.T) {
	facts := domain.Facts{
		"zeta":  domain.NumberValue(1),
		"alpha": domain.NumberValue(2),
	}
	prompt := ConstructPrompt(nil, rules.Aggregate{}, facts)

	alphaIdx := strings.Index(prompt, "- alpha: 2")
	zetaIdx := strings.Index(prompt, "- zeta: 1")
	if alphaIdx < 0 || zetaIdx < 0 {
		t.Fatalf("expected both facts rendered, got:\n%s", prompt)
	}
	if alphaIdx > zetaIdx {
		t.Fatal("facts must be serialised in sorted key order")
	}
}

func TestConstructPrompt_ChunksKeepRankedOrder(t *testing.T) {
	chunks := []domain.ChunkWithScore{
		{Chunk: domain.Chunk{Text: "most relevant"}, Score: 0.95},
		{Chunk: domain.Chunk{Text: "less relevant"}, Score: 0.75},
	}
	prompt := ConstructPrompt(chunks, rules.Aggregate{}, domain.Facts{})

	if !strings.Contains(prompt, "[1] most relevant") || !strings.Contains(prompt, "[2] less relevant") {
		t.Fatalf("expected numbered chunks in ranked order, got:\n%s", prompt)
	}
}

func TestConstructPrompt_NoContext(t *testing.T) {
	prompt := ConstructPrompt(nil, rules.Aggregate{}, domain.Facts{})
	if !strings.Contains(prompt, noContextNote) {
		t.Fatal("empty chunk set must render the no-context note")
	}
}
