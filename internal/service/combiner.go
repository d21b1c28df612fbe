package service

import (
	"github.com/visaflow/visaflow/internal/domain"
)

// EscalationConfidenceThreshold is the combined confidence below which a
// check always escalates to human review.
const EscalationConfidenceThreshold = 0.6

// RuleVerdict is the deterministic side of the combination.
type RuleVerdict struct {
	Outcome    domain.Outcome
	Confidence float64
}

// AIVerdict is the reasoning side. ConfidenceKnown is false when the model
// response carried no parsable confidence.
type AIVerdict struct {
	Outcome         domain.Outcome
	Confidence      float64
	ConfidenceKnown bool
}

// Combined is the merged verdict plus the escalation decision. Enacting the
// escalation is delegated to the case-status collaborators.
type Combined struct {
	Outcome    domain.Outcome
	Confidence float64
	Conflict   bool
	AIUsed     bool
	Escalate   bool
}

// Combine merges the two independently produced verdicts.
//
// An absent AI verdict, or one whose outcome is unknown, leaves the rule
// verdict untouched. A conflict exists only when the two outcomes sit on
// opposite ends (eligible vs not_eligible); requires_review on either side
// never creates one by itself. On conflict the combination is conservative:
// requires_review with the lower of the two confidences, never an
// auto-approval on disagreement. Without conflict the AI verdict wins when it
// ran, since it carries the contextual nuance the rule pass lacks.
//
// Escalation triggers independently of conflict: low combined confidence, a
// conflict, or a mandatory requirement left unevaluated by missing facts.
func Combine(rule RuleVerdict, ai *AIVerdict, mandatoryFactsMissing bool) Combined {
	c := Combined{
		Outcome:    rule.Outcome,
		Confidence: rule.Confidence,
	}

	if ai != nil && ai.Outcome != domain.OutcomeUnknown {
		c.AIUsed = true
		aiConfidence := ai.Confidence
		if !ai.ConfidenceKnown {
			// No parsable confidence: the rule score is the only usable
			// signal for thresholds either way.
			aiConfidence = rule.Confidence
		}

		c.Conflict = opposed(rule.Outcome, ai.Outcome)
		if c.Conflict {
			c.Outcome = domain.OutcomeRequiresReview
			c.Confidence = min(rule.Confidence, aiConfidence)
		} else {
			c.Outcome = ai.Outcome
			c.Confidence = aiConfidence
		}
	}

	c.Escalate = c.Confidence < EscalationConfidenceThreshold || c.Conflict || mandatoryFactsMissing
	return c
}

func opposed(a, b domain.Outcome) bool {
	return (a == domain.OutcomeEligible && b == domain.OutcomeNotEligible) ||
		(a == domain.OutcomeNotEligible && b == domain.OutcomeEligible)
}
