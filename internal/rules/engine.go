package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/visaflow/visaflow/internal/domain"
	"go.uber.org/zap"
)

// ErrRuleVersionNotFound means no active rule version exists for the visa
// type and date. There is no baseline to evaluate against, so the whole check
// aborts; the condition is not retryable.
var ErrRuleVersionNotFound = errors.New("no active rule version")

const (
	// EligibleConfidenceThreshold is the minimum aggregate confidence for an
	// eligible outcome when no facts are missing.
	EligibleConfidenceThreshold = 0.8
	// PossibleConfidenceThreshold is the minimum aggregate confidence for a
	// requires_review leaning outcome.
	PossibleConfidenceThreshold = 0.5
)

type RequirementStatus string

const (
	StatusPassed        RequirementStatus = "passed"
	StatusFailed        RequirementStatus = "failed"
	StatusIndeterminate RequirementStatus = "indeterminate"
	StatusError         RequirementStatus = "error"
)

// RequirementResult is the evaluation of one requirement against the facts.
type RequirementResult struct {
	Code         string            `json:"code"`
	Mandatory    bool              `json:"mandatory"`
	Status       RequirementStatus `json:"status"`
	MissingFacts []string          `json:"missing_facts,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Aggregate summarises a full requirement-set evaluation.
type Aggregate struct {
	Outcome          domain.Outcome `json:"outcome"`
	Confidence       float64        `json:"confidence"`
	Passed           int            `json:"passed"`
	TotalEvaluable   int            `json:"total_evaluable"`
	MissingFacts     []string       `json:"missing_facts,omitempty"`
	MandatoryMissing bool           `json:"mandatory_missing"`
	FailedMandatory  []string       `json:"failed_mandatory,omitempty"`
}

// Engine evaluates a rule version's requirement set against case facts.
type Engine struct {
	ruleStore domain.RuleStore
	logger    *zap.Logger
}

func NewEngine(rs domain.RuleStore, logger *zap.Logger) *Engine {
	return &Engine{ruleStore: rs, logger: logger}
}

// ActiveRuleVersion resolves the rule version in force for the visa type at
// asOf. The publishing pipeline should keep at most one version active per
// date; if that invariant is violated the most recently created version wins
// and the ambiguity is logged, never silently ignored.
func (e *Engine) ActiveRuleVersion(ctx context.Context, visaTypeID uuid.UUID, asOf time.Time) (*domain.RuleVersion, error) {
	versions, err := e.ruleStore.GetActiveVersions(ctx, visaTypeID, asOf)
	if err != nil {
		return nil, fmt.Errorf("load rule versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w for visa type %s at %s", ErrRuleVersionNotFound, visaTypeID, asOf.Format("2006-01-02"))
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})

	if len(versions) > 1 {
		ids := make([]string, 0, len(versions))
		for _, v := range versions {
			ids = append(ids, v.ID.String())
		}
		e.logger.Warn("multiple active rule versions, selecting most recently created",
			zap.String("visa_type_id", visaTypeID.String()),
			zap.Time("as_of", asOf),
			zap.Strings("version_ids", ids),
		)
	}

	return &versions[0], nil
}

// EvaluateAll evaluates every requirement independently. A requirement whose
// comparison is incompatible records an error status; it never aborts the
// others.
func (e *Engine) EvaluateAll(rv *domain.RuleVersion, facts domain.Facts) []RequirementResult {
	results := make([]RequirementResult, 0, len(rv.Requirements))
	for _, req := range rv.Requirements {
		rr := RequirementResult{Code: req.Code, Mandatory: req.Mandatory}

		eval, err := Evaluate(req.Expression, facts)
		if err != nil {
			var evalErr *EvaluationError
			if errors.As(err, &evalErr) {
				rr.Status = StatusError
				rr.Error = evalErr.Reason
				e.logger.Warn("requirement evaluation error",
					zap.String("rule_version_id", rv.ID.String()),
					zap.String("requirement", req.Code),
					zap.String("reason", evalErr.Reason),
				)
				results = append(results, rr)
				continue
			}
			rr.Status = StatusError
			rr.Error = err.Error()
			results = append(results, rr)
			continue
		}

		rr.MissingFacts = eval.Missing
		switch eval.Value {
		case True:
			rr.Status = StatusPassed
		case False:
			rr.Status = StatusFailed
		default:
			rr.Status = StatusIndeterminate
		}
		results = append(results, rr)
	}
	return results
}

// AggregateResults folds per-requirement results into an outcome and a
// confidence score.
//
// Confidence is passedEvaluable / totalEvaluable, where requirements left
// indeterminate by missing facts are excluded from the denominator. An
// erroring requirement stays in the denominator and counts as not passed: it
// was evaluable, it just could not be satisfied. Zero evaluable requirements
// means zero confidence. A failed (or erroring) mandatory requirement forces
// not_eligible regardless of the score. A mandatory requirement left
// indeterminate by missing facts blocks eligible; missing facts on optional
// requirements are reported but do not block.
func AggregateResults(results []RequirementResult) Aggregate {
	agg := Aggregate{Outcome: domain.OutcomeNotEligible}
	missing := map[string]bool{}

	for _, r := range results {
		for _, key := range r.MissingFacts {
			missing[key] = true
		}
		switch r.Status {
		case StatusPassed:
			agg.Passed++
			agg.TotalEvaluable++
		case StatusFailed, StatusError:
			agg.TotalEvaluable++
			if r.Mandatory {
				agg.FailedMandatory = append(agg.FailedMandatory, r.Code)
			}
		case StatusIndeterminate:
			if r.Mandatory {
				agg.MandatoryMissing = true
			}
		}
	}

	if len(missing) > 0 {
		agg.MissingFacts = make([]string, 0, len(missing))
		for k := range missing {
			agg.MissingFacts = append(agg.MissingFacts, k)
		}
		sort.Strings(agg.MissingFacts)
	}

	if agg.TotalEvaluable > 0 {
		agg.Confidence = float64(agg.Passed) / float64(agg.TotalEvaluable)
	}

	switch {
	case len(agg.FailedMandatory) > 0:
		agg.Outcome = domain.OutcomeNotEligible
	case agg.Confidence >= EligibleConfidenceThreshold && !agg.MandatoryMissing:
		agg.Outcome = domain.OutcomeEligible
	case agg.Confidence >= PossibleConfidenceThreshold:
		agg.Outcome = domain.OutcomeRequiresReview
	default:
		agg.Outcome = domain.OutcomeNotEligible
	}

	return agg
}

// Summary renders a short human-readable account of the aggregate, used when
// the AI path contributes no narrative.
func (a Aggregate) Summary() string {
	s := fmt.Sprintf("%d of %d evaluable requirements passed (confidence %.2f)", a.Passed, a.TotalEvaluable, a.Confidence)
	if len(a.FailedMandatory) > 0 {
		s += fmt.Sprintf("; failed mandatory: %v", a.FailedMandatory)
	}
	if len(a.MissingFacts) > 0 {
		s += fmt.Sprintf("; missing facts: %v", a.MissingFacts)
	}
	return s
}
