package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseStore records case status transitions the engine triggers. Case
// ownership lives elsewhere; these writes are signals for downstream
// workflow, not authoritative case state.
type CaseStore struct {
	db *pgxpool.Pool
}

func NewCaseStore(db *pgxpool.Pool) *CaseStore {
	return &CaseStore{db: db}
}

func (s *CaseStore) RequestHumanReview(ctx context.Context, caseID uuid.UUID, reason string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO human_review_requests (case_id, reason) VALUES ($1, $2)`,
		caseID, reason,
	)
	return err
}

func (s *CaseStore) MarkCaseEvaluated(ctx context.Context, caseID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO case_evaluations (case_id) VALUES ($1)
		 ON CONFLICT (case_id) DO UPDATE SET evaluated_at = NOW()`,
		caseID,
	)
	return err
}
