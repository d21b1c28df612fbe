package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/visaflow/visaflow/internal/domain"
	"github.com/visaflow/visaflow/internal/reasoning"
	"github.com/visaflow/visaflow/internal/rules"
	"go.uber.org/zap"
)

// mockFactStore implements domain.FactStore for testing.
type mockFactStore struct {
	facts map[uuid.UUID]domain.Facts
	err   error
}

func (m *mockFactStore) GetFacts(ctx context.Context, caseID uuid.UUID) (domain.Facts, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.facts[caseID], nil
}

// mockRuleStore implements domain.RuleStore for testing.
type mockRuleStore struct {
	versions []domain.RuleVersion
	calls    int
}

func (m *mockRuleStore) GetActiveVersions(ctx context.Context, visaTypeID uuid.UUID, asOf time.Time) ([]domain.RuleVersion, error) {
	m.calls++
	var out []domain.RuleVersion
	for _, v := range m.versions {
		if v.VisaTypeID == visaTypeID && v.ActiveAt(asOf) {
			out = append(out, v)
		}
	}
	return out, nil
}

// mockResultStore implements domain.ResultStore for testing. Like the pgx
// store it assigns ids and wires the log and citation references, and a
// failure stores nothing at all.
type mockResultStore struct {
	results   map[uuid.UUID]*domain.EligibilityResult
	logs      []*domain.ReasoningLog
	citations []domain.Citation

	saveResultErr error
	saveLogErr    error
}

func newMockResultStore() *mockResultStore {
	return &mockResultStore{results: map[uuid.UUID]*domain.EligibilityResult{}}
}

func (m *mockResultStore) SaveCheckRecord(ctx context.Context, r *domain.EligibilityResult, l *domain.ReasoningLog, citations []domain.Citation) error {
	if m.saveResultErr != nil {
		return m.saveResultErr
	}
	if l != nil && m.saveLogErr != nil {
		return m.saveLogErr
	}

	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	stored := *r
	m.results[r.ID] = &stored

	if l != nil {
		l.ID = uuid.New()
		l.CaseID = r.CaseID
		l.ResultID = r.ID
		storedLog := *l
		m.logs = append(m.logs, &storedLog)

		for i := range citations {
			citations[i].ReasoningLogID = l.ID
		}
		m.citations = append(m.citations, citations...)
	}
	return nil
}

func (m *mockResultStore) GetResultByID(ctx context.Context, id uuid.UUID) (*domain.EligibilityResult, error) {
	r, ok := m.results[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (m *mockResultStore) ListResultsByCase(ctx context.Context, caseID uuid.UUID) ([]domain.EligibilityResult, error) {
	var out []domain.EligibilityResult
	for _, r := range m.results {
		if r.CaseID == caseID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// mockNotifier implements domain.CaseNotifier for testing.
type mockNotifier struct {
	reviewRequests []string
	evaluated      []uuid.UUID
	reviewErr      error
}

func (m *mockNotifier) RequestHumanReview(ctx context.Context, caseID uuid.UUID, reason string) error {
	if m.reviewErr != nil {
		return m.reviewErr
	}
	m.reviewRequests = append(m.reviewRequests, reason)
	return nil
}

func (m *mockNotifier) MarkCaseEvaluated(ctx context.Context, caseID uuid.UUID) error {
	m.evaluated = append(m.evaluated, caseID)
	return nil
}

// mockReasoner implements Reasoner for testing.
type mockReasoner struct {
	result *reasoning.Result
	err    error
	calls  int
}

func (m *mockReasoner) Reason(ctx context.Context, facts domain.Facts, rv *domain.RuleVersion, agg rules.Aggregate) (*reasoning.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func skilledWorkerVersion(visaTypeID uuid.UUID) domain.RuleVersion {
	return domain.RuleVersion{
		ID:            uuid.New(),
		VisaTypeID:    visaTypeID,
		VisaCode:      "SKILLED_WORKER",
		Jurisdiction:  "UK",
		EffectiveFrom: time.Now().AddDate(-1, 0, 0),
		Published:     true,
		CreatedAt:     time.Now().AddDate(0, -6, 0),
		Requirements: []domain.Requirement{
			{
				Code:       "min_salary",
				Expression: domain.Compare(domain.OpGte, domain.Var("salary"), domain.Lit(domain.NumberValue(38700))),
				Mandatory:  true,
			},
			{
				Code:       "has_degree",
				Expression: domain.Compare(domain.OpEq, domain.Var("has_degree"), domain.Lit(domain.BoolValue(true))),
				Mandatory:  false,
			},
		},
	}
}

type eligibilityFixture struct {
	svc        *EligibilityService
	caseID     uuid.UUID
	visaTypeID uuid.UUID
	ruleStore  *mockRuleStore
	results    *mockResultStore
	notifier   *mockNotifier
	reasoner   *mockReasoner
}

func setupEligibilityTest(reasoner *mockReasoner) *eligibilityFixture {
	caseID := uuid.New()
	visaTypeID := uuid.New()

	factStore := &mockFactStore{facts: map[uuid.UUID]domain.Facts{
		caseID: {
			"salary":     domain.NumberValue(42000),
			"has_degree": domain.BoolValue(true),
		},
	}}
	ruleStore := &mockRuleStore{versions: []domain.RuleVersion{skilledWorkerVersion(visaTypeID)}}
	results := newMockResultStore()
	notifier := &mockNotifier{}

	engine := rules.NewEngine(ruleStore, zap.NewNop())

	var r Reasoner
	if reasoner != nil {
		r = reasoner
	}
	svc := NewEligibilityService(factStore, engine, r, results, notifier, zap.NewNop())

	return &eligibilityFixture{
		svc:        svc,
		caseID:     caseID,
		visaTypeID: visaTypeID,
		ruleStore:  ruleStore,
		results:    results,
		notifier:   notifier,
		reasoner:   reasoner,
	}
}

func TestCheckCase_RuleOnly(t *testing.T) {
	f := setupEligibilityTest(nil)

	results, err := f.svc.CheckCase(context.Background(), f.caseID, []uuid.UUID{f.visaTypeID})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Outcome != domain.OutcomeEligible {
		t.Fatalf("expected eligible, got %s", r.Outcome)
	}
	if r.AIUsed {
		t.Fatal("expected AIUsed false with no reasoner")
	}
	if r.ID == uuid.Nil {
		t.Fatal("expected result to be persisted")
	}
	if len(f.notifier.evaluated) != 1 {
		t.Fatal("expected case to be marked evaluated")
	}
}

func TestCheckCase_AIOutageDegradesToRuleVerdict(t *testing.T) {
	reasoner := &mockReasoner{err: errors.New("model unavailable: 503")}
	f := setupEligibilityTest(reasoner)

	results, err := f.svc.CheckCase(context.Background(), f.caseID, []uuid.UUID{f.visaTypeID})
	if err != nil {
		t.Fatalf("AI outage must not fail the check, got %v", err)
	}

	r := results[0]
	if r.AIUsed {
		t.Fatal("expected AIUsed false after AI failure")
	}
	if r.Outcome != domain.OutcomeEligible {
		t.Fatalf("expected rule verdict eligible, got %s", r.Outcome)
	}
	if reasoner.calls != 1 {
		t.Fatalf("expected one reasoning attempt, got %d", reasoner.calls)
	}
	if len(f.results.logs) != 0 {
		t.Fatal("no reasoning log should be written when AI was skipped")
	}
}

func TestCheckCase_AIAgreementPersistsLogAndCitations(t *testing.T) {
	docVersionID := uuid.New()
	reasoner := &mockReasoner{result: &reasoning.Result{
		Verdict:         domain.OutcomeEligible,
		Confidence:      0.92,
		ConfidenceKnown: true,
		Summary:         "Salary and sponsorship requirements are met.",
		Citations: []domain.Citation{
			{DocumentVersionID: docVersionID, Excerpt: "salary threshold guidance", RelevanceScore: 0.88},
		},
		Log: domain.ReasoningLog{Prompt: "p", ResponseText: "r", ModelName: "mock"},
	}}
	f := setupEligibilityTest(reasoner)

	results, err := f.svc.CheckCase(context.Background(), f.caseID, []uuid.UUID{f.visaTypeID})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	r := results[0]
	if !r.AIUsed {
		t.Fatal("expected AIUsed")
	}
	if r.Confidence != 0.92 {
		t.Fatalf("expected AI confidence 0.92, got %f", r.Confidence)
	}
	if r.ReasoningSummary != "Salary and sponsorship requirements are met." {
		t.Fatalf("unexpected summary %q", r.ReasoningSummary)
	}

	if len(f.results.logs) != 1 {
		t.Fatalf("expected 1 reasoning log, got %d", len(f.results.logs))
	}
	log := f.results.logs[0]
	if log.ResultID != r.ID {
		t.Fatal("reasoning log must reference the persisted result")
	}
	if log.CaseID != f.caseID {
		t.Fatal("reasoning log must carry the case id")
	}

	if len(f.results.citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(f.results.citations))
	}
	if f.results.citations[0].ReasoningLogID != log.ID {
		t.Fatal("citation must reference the reasoning log")
	}
}

func TestCheckCase_ConflictEscalates(t *testing.T) {
	reasoner := &mockReasoner{result: &reasoning.Result{
		Verdict:         domain.OutcomeNotEligible,
		Confidence:      0.8,
		ConfidenceKnown: true,
		Summary:         "Guidance suggests the occupation code is ineligible.",
		Log:             domain.ReasoningLog{ModelName: "mock"},
	}}
	f := setupEligibilityTest(reasoner)

	results, err := f.svc.CheckCase(context.Background(), f.caseID, []uuid.UUID{f.visaTypeID})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	r := results[0]
	if !r.Conflict {
		t.Fatal("expected conflict")
	}
	if r.Outcome != domain.OutcomeRequiresReview {
		t.Fatalf("expected requires_review, got %s", r.Outcome)
	}
	if !r.Escalated {
		t.Fatal("expected escalation")
	}
	if len(f.notifier.reviewRequests) != 1 {
		t.Fatalf("expected 1 review request, got %d", len(f.notifier.reviewRequests))
	}
}

func TestCheckCase_NotifierFailureIsNonFatal(t *testing.T) {
	reasoner := &mockReasoner{result: &reasoning.Result{
		Verdict:         domain.OutcomeNotEligible,
		Confidence:      0.8,
		ConfidenceKnown: true,
		Log:             domain.ReasoningLog{ModelName: "mock"},
	}}
	f := setupEligibilityTest(reasoner)
	f.notifier.reviewErr = errors.New("webhook down")

	results, err := f.svc.CheckCase(context.Background(), f.caseID, []uuid.UUID{f.visaTypeID})
	if err != nil {
		t.Fatalf("notifier failure must not fail the check, got %v", err)
	}
	if !results[0].Escalated {
		t.Fatal("result must still record the escalation")
	}
}

func TestCheckCase_PersistenceFailureIsFatal(t *testing.T) {
	f := setupEligibilityTest(nil)
	f.results.saveResultErr = errors.New("connection refused")

	_, err := f.svc.CheckCase(context.Background(), f.caseID, []uuid.UUID{f.visaTypeID})
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
}

func TestCheckCase_LogSaveFailureLeavesNoResult(t *testing.T) {
	reasoner := &mockReasoner{result: &reasoning.Result{
		Verdict:         domain.OutcomeEligible,
		Confidence:      0.9,
		ConfidenceKnown: true,
		Log:             domain.ReasoningLog{ModelName: "mock"},
	}}
	f := setupEligibilityTest(reasoner)
	f.results.saveLogErr = errors.New("reasoning_logs insert failed")

	_, err := f.svc.CheckCase(context.Background(), f.caseID, []uuid.UUID{f.visaTypeID})
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
	if len(f.results.results) != 0 {
		t.Fatal("a failed check must not leave a result row behind")
	}
	if len(f.results.logs) != 0 || len(f.results.citations) != 0 {
		t.Fatal("a failed check must not leave a partial reasoning trail")
	}
}

func TestCheckCase_NoActiveRuleVersionAborts(t *testing.T) {
	f := setupEligibilityTest(nil)

	_, err := f.svc.CheckCase(context.Background(), f.caseID, []uuid.UUID{uuid.New()})
	if !errors.Is(err, rules.ErrRuleVersionNotFound) {
		t.Fatalf("expected ErrRuleVersionNotFound, got %v", err)
	}
}

func TestCheckCase_ValidatesInput(t *testing.T) {
	f := setupEligibilityTest(nil)

	if _, err := f.svc.CheckCase(context.Background(), uuid.Nil, []uuid.UUID{f.visaTypeID}); !errors.Is(err, ErrCaseIDMissing) {
		t.Fatalf("expected ErrCaseIDMissing, got %v", err)
	}
	if _, err := f.svc.CheckCase(context.Background(), f.caseID, nil); !errors.Is(err, ErrVisaTypesMissing) {
		t.Fatalf("expected ErrVisaTypesMissing, got %v", err)
	}
}

func TestCheckCase_RuleVersionCachedPerInvocation(t *testing.T) {
	f := setupEligibilityTest(nil)

	// Same visa type twice in one request: the store is still hit once.
	_, err := f.svc.CheckCase(context.Background(), f.caseID, []uuid.UUID{f.visaTypeID, f.visaTypeID})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if f.ruleStore.calls != 1 {
		t.Fatalf("expected 1 rule store call, got %d", f.ruleStore.calls)
	}
}
