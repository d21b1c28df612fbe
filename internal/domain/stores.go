package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FactStore reads the externally owned fact snapshot for a case.
type FactStore interface {
	GetFacts(ctx context.Context, caseID uuid.UUID) (Facts, error)
}

// RuleStore reads externally published rule versions. More than one version
// may be active for a date if the publishing invariant was violated; callers
// resolve the ambiguity.
type RuleStore interface {
	GetActiveVersions(ctx context.Context, visaTypeID uuid.UUID, asOf time.Time) ([]RuleVersion, error)
}

// ChunkStore performs nearest-neighbour search over stored document chunks.
// Ranking is cosine similarity descending, ties broken by most recent
// document version. An empty slice is a valid outcome.
type ChunkStore interface {
	Search(ctx context.Context, embedding []float32, filters SearchFilters, topK int, minSimilarity float32) ([]ChunkWithScore, error)
}

// ResultStore owns the records the engine produces. SaveCheckRecord writes
// the result and, when the AI pass ran, its reasoning log and citations
// atomically: either the whole record is observable or none of it is. The
// log and citations may be nil for a rule-only check.
type ResultStore interface {
	SaveCheckRecord(ctx context.Context, r *EligibilityResult, l *ReasoningLog, citations []Citation) error
	GetResultByID(ctx context.Context, id uuid.UUID) (*EligibilityResult, error)
	ListResultsByCase(ctx context.Context, caseID uuid.UUID) ([]EligibilityResult, error)
}

// CaseNotifier delegates escalation and case-status updates to external
// collaborators.
type CaseNotifier interface {
	RequestHumanReview(ctx context.Context, caseID uuid.UUID, reason string) error
	MarkCaseEvaluated(ctx context.Context, caseID uuid.UUID) error
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompletionOptions carries decoding settings. The reasoning path uses
// low-variance settings so verdicts stay reproducible enough to audit.
type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
}

type Completion struct {
	Text  string
	Model string
	Usage TokenUsage
}

type CompletionClient interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (*Completion, error)
}
