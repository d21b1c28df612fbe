package service

import (
	"testing"

	"github.com/visaflow/visaflow/internal/domain"
)

func TestCombine_NoAIVerdict(t *testing.T) {
	c := Combine(RuleVerdict{Outcome: domain.OutcomeEligible, Confidence: 0.9}, nil, false)

	if c.Outcome != domain.OutcomeEligible {
		t.Fatalf("expected eligible, got %s", c.Outcome)
	}
	if c.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %f", c.Confidence)
	}
	if c.AIUsed {
		t.Fatal("expected AIUsed false")
	}
	if c.Conflict {
		t.Fatal("expected no conflict")
	}
	if c.Escalate {
		t.Fatal("expected no escalation")
	}
}

func TestCombine_UnknownAIVerdictIgnored(t *testing.T) {
	ai := &AIVerdict{Outcome: domain.OutcomeUnknown, Confidence: 0.9, ConfidenceKnown: true}
	c := Combine(RuleVerdict{Outcome: domain.OutcomeEligible, Confidence: 0.85}, ai, false)

	if c.AIUsed {
		t.Fatal("unknown AI verdict must not count as used")
	}
	if c.Outcome != domain.OutcomeEligible {
		t.Fatalf("expected rule verdict to stand, got %s", c.Outcome)
	}
}

func TestCombine_Conflict(t *testing.T) {
	ai := &AIVerdict{Outcome: domain.OutcomeNotEligible, Confidence: 0.8, ConfidenceKnown: true}
	c := Combine(RuleVerdict{Outcome: domain.OutcomeEligible, Confidence: 0.9}, ai, false)

	if !c.Conflict {
		t.Fatal("expected conflict")
	}
	if c.Outcome != domain.OutcomeRequiresReview {
		t.Fatalf("expected requires_review on conflict, got %s", c.Outcome)
	}
	if c.Confidence != 0.8 {
		t.Fatalf("expected min confidence 0.8, got %f", c.Confidence)
	}
	if !c.Escalate {
		t.Fatal("conflict must escalate")
	}
}

func TestCombine_ConflictIsSymmetric(t *testing.T) {
	ai := &AIVerdict{Outcome: domain.OutcomeEligible, Confidence: 0.9, ConfidenceKnown: true}
	c := Combine(RuleVerdict{Outcome: domain.OutcomeNotEligible, Confidence: 0.7}, ai, false)

	if !c.Conflict {
		t.Fatal("expected conflict in the other direction too")
	}
	if c.Confidence != 0.7 {
		t.Fatalf("expected min confidence 0.7, got %f", c.Confidence)
	}
}

func TestCombine_RequiresReviewIsNotAConflict(t *testing.T) {
	ai := &AIVerdict{Outcome: domain.OutcomeRequiresReview, Confidence: 0.7, ConfidenceKnown: true}
	c := Combine(RuleVerdict{Outcome: domain.OutcomeEligible, Confidence: 0.9}, ai, false)

	if c.Conflict {
		t.Fatal("requires_review on one side must not create a conflict")
	}
	if c.Outcome != domain.OutcomeRequiresReview {
		t.Fatalf("expected AI verdict to win without conflict, got %s", c.Outcome)
	}
	if c.Confidence != 0.7 {
		t.Fatalf("expected AI confidence 0.7, got %f", c.Confidence)
	}
}

func TestCombine_AgreementUsesAIVerdict(t *testing.T) {
	ai := &AIVerdict{Outcome: domain.OutcomeEligible, Confidence: 0.95, ConfidenceKnown: true}
	c := Combine(RuleVerdict{Outcome: domain.OutcomeEligible, Confidence: 0.8}, ai, false)

	if c.Outcome != domain.OutcomeEligible {
		t.Fatalf("expected eligible, got %s", c.Outcome)
	}
	if c.Confidence != 0.95 {
		t.Fatalf("expected AI confidence 0.95, got %f", c.Confidence)
	}
	if !c.AIUsed {
		t.Fatal("expected AIUsed")
	}
}

func TestCombine_UnknownAIConfidenceFallsBackToRule(t *testing.T) {
	ai := &AIVerdict{Outcome: domain.OutcomeEligible, ConfidenceKnown: false}
	c := Combine(RuleVerdict{Outcome: domain.OutcomeEligible, Confidence: 0.85}, ai, false)

	if c.Confidence != 0.85 {
		t.Fatalf("expected rule confidence 0.85, got %f", c.Confidence)
	}
}

func TestCombine_LowConfidenceEscalates(t *testing.T) {
	c := Combine(RuleVerdict{Outcome: domain.OutcomeRequiresReview, Confidence: 0.4}, nil, false)

	if !c.Escalate {
		t.Fatal("confidence below threshold must escalate")
	}
}

func TestCombine_MandatoryFactsMissingEscalates(t *testing.T) {
	c := Combine(RuleVerdict{Outcome: domain.OutcomeRequiresReview, Confidence: 0.9}, nil, true)

	if !c.Escalate {
		t.Fatal("missing mandatory facts must escalate regardless of confidence")
	}
}

func TestCombine_BoundaryConfidenceDoesNotEscalate(t *testing.T) {
	c := Combine(RuleVerdict{Outcome: domain.OutcomeRequiresReview, Confidence: EscalationConfidenceThreshold}, nil, false)

	if c.Escalate {
		t.Fatal("confidence exactly at threshold must not escalate")
	}
}
