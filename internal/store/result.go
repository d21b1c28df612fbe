package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/visaflow/visaflow/internal/domain"
)

type ResultStore struct {
	db *pgxpool.Pool
}

func NewResultStore(db *pgxpool.Pool) *ResultStore {
	return &ResultStore{db: db}
}

// SaveCheckRecord writes the result row and, when a reasoning log is given,
// the log and its citations inside one transaction. A failure on any insert
// rolls the whole record back so a check never leaves a partial trail.
func (s *ResultStore) SaveCheckRecord(ctx context.Context, r *domain.EligibilityResult, l *domain.ReasoningLog, citations []domain.Citation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin check record transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	err = tx.QueryRow(ctx,
		`INSERT INTO eligibility_results (case_id, visa_type_id, rule_version_id, outcome, confidence, reasoning_summary, missing_facts, conflict, ai_used, escalated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		r.CaseID, r.VisaTypeID, r.RuleVersionID, r.Outcome, r.Confidence, r.ReasoningSummary, r.MissingFacts, r.Conflict, r.AIUsed, r.Escalated,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	if l != nil {
		l.CaseID = r.CaseID
		l.ResultID = r.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO reasoning_logs (case_id, result_id, prompt, response_text, model_name, prompt_tokens, completion_tokens, total_tokens)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id, created_at`,
			l.CaseID, l.ResultID, l.Prompt, l.ResponseText, l.ModelName,
			l.TokenUsage.PromptTokens, l.TokenUsage.CompletionTokens, l.TokenUsage.TotalTokens,
		).Scan(&l.ID, &l.CreatedAt)
		if err != nil {
			return fmt.Errorf("save reasoning log: %w", err)
		}

		for i := range citations {
			c := &citations[i]
			c.ReasoningLogID = l.ID
			err = tx.QueryRow(ctx,
				`INSERT INTO citations (reasoning_log_id, document_version_id, excerpt, relevance_score)
				 VALUES ($1, $2, $3, $4)
				 RETURNING id, created_at`,
				c.ReasoningLogID, c.DocumentVersionID, c.Excerpt, c.RelevanceScore,
			).Scan(&c.ID, &c.CreatedAt)
			if err != nil {
				return fmt.Errorf("save citation %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit check record transaction: %w", err)
	}
	return nil
}

func (s *ResultStore) GetResultByID(ctx context.Context, id uuid.UUID) (*domain.EligibilityResult, error) {
	r := &domain.EligibilityResult{}
	err := s.db.QueryRow(ctx,
		`SELECT id, case_id, visa_type_id, rule_version_id, outcome, confidence, reasoning_summary, missing_facts, conflict, ai_used, escalated, created_at
		 FROM eligibility_results WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.CaseID, &r.VisaTypeID, &r.RuleVersionID, &r.Outcome, &r.Confidence, &r.ReasoningSummary, &r.MissingFacts, &r.Conflict, &r.AIUsed, &r.Escalated, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *ResultStore) ListResultsByCase(ctx context.Context, caseID uuid.UUID) ([]domain.EligibilityResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, case_id, visa_type_id, rule_version_id, outcome, confidence, reasoning_summary, missing_facts, conflict, ai_used, escalated, created_at
		 FROM eligibility_results WHERE case_id = $1
		 ORDER BY created_at DESC`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("results query: %w", err)
	}
	defer rows.Close()

	var results []domain.EligibilityResult
	for rows.Next() {
		var r domain.EligibilityResult
		if err := rows.Scan(&r.ID, &r.CaseID, &r.VisaTypeID, &r.RuleVersionID, &r.Outcome, &r.Confidence, &r.ReasoningSummary, &r.MissingFacts, &r.Conflict, &r.AIUsed, &r.Escalated, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
