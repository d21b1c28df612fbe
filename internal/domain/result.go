package domain

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeEligible       Outcome = "eligible"
	OutcomeNotEligible    Outcome = "not_eligible"
	OutcomeRequiresReview Outcome = "requires_review"
	// OutcomeUnknown is only ever produced by the AI path when the model
	// response carries no parsable verdict. It never appears in a persisted
	// result.
	OutcomeUnknown Outcome = "unknown"
)

func ValidOutcome(o string) bool {
	switch Outcome(o) {
	case OutcomeEligible, OutcomeNotEligible, OutcomeRequiresReview:
		return true
	}
	return false
}

// EligibilityResult is the single record a check produces. Written exactly
// once, never mutated.
type EligibilityResult struct {
	ID               uuid.UUID `json:"id"`
	CaseID           uuid.UUID `json:"case_id"`
	VisaTypeID       uuid.UUID `json:"visa_type_id"`
	RuleVersionID    uuid.UUID `json:"rule_version_id"`
	Outcome          Outcome   `json:"outcome"`
	Confidence       float64   `json:"confidence"`
	ReasoningSummary string    `json:"reasoning_summary,omitempty"`
	MissingFacts     []string  `json:"missing_facts,omitempty"`
	Conflict         bool      `json:"conflict"`
	AIUsed           bool      `json:"ai_used"`
	Escalated        bool      `json:"escalated"`
	CreatedAt        time.Time `json:"created_at"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ReasoningLog records one AI reasoning invocation for audit.
type ReasoningLog struct {
	ID           uuid.UUID  `json:"id"`
	CaseID       uuid.UUID  `json:"case_id"`
	ResultID     uuid.UUID  `json:"result_id"`
	Prompt       string     `json:"prompt"`
	ResponseText string     `json:"response_text"`
	ModelName    string     `json:"model_name"`
	TokenUsage   TokenUsage `json:"token_usage"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Citation links a reasoning log to a cited document chunk.
type Citation struct {
	ID                uuid.UUID `json:"id"`
	ReasoningLogID    uuid.UUID `json:"reasoning_log_id"`
	DocumentVersionID uuid.UUID `json:"document_version_id"`
	Excerpt           string    `json:"excerpt"`
	RelevanceScore    float32   `json:"relevance_score"`
	CreatedAt         time.Time `json:"created_at"`
}
