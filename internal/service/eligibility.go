package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/visaflow/visaflow/internal/domain"
	"github.com/visaflow/visaflow/internal/reasoning"
	"github.com/visaflow/visaflow/internal/rules"
	"go.uber.org/zap"
)

var (
	ErrCaseIDMissing     = errors.New("case_id is required")
	ErrVisaTypesMissing  = errors.New("at least one visa_type_id is required")
	ErrPersistenceFailed = errors.New("failed to persist eligibility result")
)

// CheckState tracks one coordinator run through its state machine.
type CheckState string

const (
	StatePending       CheckState = "PENDING"
	StateRuleEvaluated CheckState = "RULE_EVALUATED"
	StateAIEvaluated   CheckState = "AI_EVALUATED"
	StateAISkipped     CheckState = "AI_SKIPPED"
	StateCombined      CheckState = "COMBINED"
	StatePersisted     CheckState = "PERSISTED"
	StateEscalated     CheckState = "ESCALATED"
	StateDone          CheckState = "DONE"
)

// Reasoner is the AI reasoning pass. Nil means no model is configured and
// every check runs on the rule verdict alone.
type Reasoner interface {
	Reason(ctx context.Context, facts domain.Facts, rv *domain.RuleVersion, agg rules.Aggregate) (*reasoning.Result, error)
}

// EligibilityService coordinates eligibility checks: rule evaluation first as
// a hard prerequisite, then the degradable AI pass, then combination,
// persistence, and escalation. All state lives on the stack of a single run;
// any number of checks may execute concurrently.
type EligibilityService struct {
	factStore   domain.FactStore
	engine      *rules.Engine
	reasoner    Reasoner
	resultStore domain.ResultStore
	notifier    domain.CaseNotifier
	logger      *zap.Logger
}

func NewEligibilityService(fs domain.FactStore, engine *rules.Engine, reasoner Reasoner, rs domain.ResultStore, notifier domain.CaseNotifier, logger *zap.Logger) *EligibilityService {
	return &EligibilityService{
		factStore:   fs,
		engine:      engine,
		reasoner:    reasoner,
		resultStore: rs,
		notifier:    notifier,
		logger:      logger,
	}
}

// ruleVersionCache is scoped to one CheckCase invocation, keyed by
// (visaTypeID, date). It avoids re-reading a version within a run without
// risking staleness across concurrently published rule versions.
type ruleVersionCache map[string]*domain.RuleVersion

func cacheKey(visaTypeID uuid.UUID, asOf time.Time) string {
	return visaTypeID.String() + "@" + asOf.Format("2006-01-02")
}

// CheckCase runs one independent check per requested visa type. Each check
// either yields a complete persisted result or contributes one error;
// partial results are never returned. The case is marked evaluated once all
// requested checks persisted.
func (s *EligibilityService) CheckCase(ctx context.Context, caseID uuid.UUID, visaTypeIDs []uuid.UUID) ([]*domain.EligibilityResult, error) {
	if caseID == uuid.Nil {
		return nil, ErrCaseIDMissing
	}
	if len(visaTypeIDs) == 0 {
		return nil, ErrVisaTypesMissing
	}

	facts, err := s.factStore.GetFacts(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load facts for case %s: %w", caseID, err)
	}

	asOf := time.Now().UTC()
	cache := ruleVersionCache{}

	results := make([]*domain.EligibilityResult, 0, len(visaTypeIDs))
	for _, visaTypeID := range visaTypeIDs {
		result, err := s.runCheck(ctx, caseID, visaTypeID, facts, asOf, cache)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	if s.notifier != nil {
		if err := s.notifier.MarkCaseEvaluated(ctx, caseID); err != nil {
			s.logger.Warn("failed to mark case evaluated",
				zap.String("case_id", caseID.String()),
				zap.Error(err))
		}
	}

	return results, nil
}

// runCheck drives the state machine for one (case, visaType) pair.
func (s *EligibilityService) runCheck(ctx context.Context, caseID, visaTypeID uuid.UUID, facts domain.Facts, asOf time.Time, cache ruleVersionCache) (*domain.EligibilityResult, error) {
	state := StatePending

	// Rule evaluation is cheap and deterministic; it always runs first and
	// its failure aborts the whole check.
	rv, err := s.activeRuleVersion(ctx, visaTypeID, asOf, cache)
	if err != nil {
		return nil, err
	}

	perRequirement := s.engine.EvaluateAll(rv, facts)
	agg := rules.AggregateResults(perRequirement)
	state = StateRuleEvaluated

	// AI reasoning is attempted only after a successful rule evaluation.
	// Any failure on this path degrades to a rule-only verdict.
	var aiResult *reasoning.Result
	if s.reasoner != nil {
		aiResult, err = s.reasoner.Reason(ctx, facts, rv, agg)
		if err != nil {
			s.logger.Warn("AI reasoning unavailable, continuing with rule verdict",
				zap.String("case_id", caseID.String()),
				zap.String("visa_type_id", visaTypeID.String()),
				zap.Error(err))
			aiResult = nil
			state = StateAISkipped
		} else {
			state = StateAIEvaluated
		}
	} else {
		state = StateAISkipped
	}

	var aiVerdict *AIVerdict
	if aiResult != nil {
		aiVerdict = &AIVerdict{
			Outcome:         aiResult.Verdict,
			Confidence:      aiResult.Confidence,
			ConfidenceKnown: aiResult.ConfidenceKnown,
		}
	}

	combined := Combine(
		RuleVerdict{Outcome: agg.Outcome, Confidence: agg.Confidence},
		aiVerdict,
		agg.MandatoryMissing,
	)
	state = StateCombined

	result := &domain.EligibilityResult{
		CaseID:           caseID,
		VisaTypeID:       visaTypeID,
		RuleVersionID:    rv.ID,
		Outcome:          combined.Outcome,
		Confidence:       combined.Confidence,
		ReasoningSummary: s.summaryFor(agg, aiResult, combined),
		MissingFacts:     agg.MissingFacts,
		Conflict:         combined.Conflict,
		AIUsed:           combined.AIUsed,
		Escalated:        combined.Escalate,
	}

	if err := s.persist(ctx, result, aiResult); err != nil {
		// An unpersisted result is unobservable; this must surface as a
		// failed check, never be dropped.
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	state = StatePersisted

	if combined.Escalate {
		state = StateEscalated
		s.escalate(ctx, caseID, combined, agg)
	} else {
		state = StateDone
	}

	s.logger.Info("eligibility check complete",
		zap.String("case_id", caseID.String()),
		zap.String("visa_type_id", visaTypeID.String()),
		zap.String("rule_version_id", rv.ID.String()),
		zap.String("outcome", string(result.Outcome)),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("conflict", result.Conflict),
		zap.Bool("ai_used", result.AIUsed),
		zap.String("final_state", string(state)),
	)

	return result, nil
}

func (s *EligibilityService) activeRuleVersion(ctx context.Context, visaTypeID uuid.UUID, asOf time.Time, cache ruleVersionCache) (*domain.RuleVersion, error) {
	key := cacheKey(visaTypeID, asOf)
	if rv, ok := cache[key]; ok {
		return rv, nil
	}
	rv, err := s.engine.ActiveRuleVersion(ctx, visaTypeID, asOf)
	if err != nil {
		return nil, err
	}
	cache[key] = rv
	return rv, nil
}

func (s *EligibilityService) persist(ctx context.Context, result *domain.EligibilityResult, aiResult *reasoning.Result) error {
	if aiResult == nil {
		return s.resultStore.SaveCheckRecord(ctx, result, nil, nil)
	}

	log := aiResult.Log
	citations := make([]domain.Citation, len(aiResult.Citations))
	copy(citations, aiResult.Citations)
	return s.resultStore.SaveCheckRecord(ctx, result, &log, citations)
}

func (s *EligibilityService) escalate(ctx context.Context, caseID uuid.UUID, combined Combined, agg rules.Aggregate) {
	if s.notifier == nil {
		return
	}
	reason := escalationReason(combined, agg)
	if err := s.notifier.RequestHumanReview(ctx, caseID, reason); err != nil {
		// The escalation flag is already persisted on the result; the
		// notification itself is best effort.
		s.logger.Warn("failed to request human review",
			zap.String("case_id", caseID.String()),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func escalationReason(combined Combined, agg rules.Aggregate) string {
	switch {
	case combined.Conflict:
		return "rule and AI verdicts disagree"
	case agg.MandatoryMissing:
		return fmt.Sprintf("mandatory requirement facts missing: %v", agg.MissingFacts)
	default:
		return fmt.Sprintf("combined confidence %.2f below threshold", combined.Confidence)
	}
}

func (s *EligibilityService) summaryFor(agg rules.Aggregate, aiResult *reasoning.Result, combined Combined) string {
	if aiResult != nil && combined.AIUsed && aiResult.Summary != "" {
		if combined.Conflict {
			return fmt.Sprintf("Conflicting verdicts; rule check: %s. AI assessment: %s", agg.Summary(), aiResult.Summary)
		}
		return aiResult.Summary
	}
	return "Rule evaluation (AI unavailable): " + agg.Summary()
}
