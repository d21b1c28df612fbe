package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/visaflow/visaflow/internal/domain"
)

type FactStore struct {
	db *pgxpool.Pool
}

func NewFactStore(db *pgxpool.Pool) *FactStore {
	return &FactStore{db: db}
}

func (s *FactStore) Create(ctx context.Context, f *domain.Fact) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO case_facts (case_id, key, kind, value, source)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (case_id, key) DO UPDATE SET kind = $3, value = $4, source = $5, updated_at = NOW()`,
		f.CaseID, f.Key, string(f.Value.Kind), f.Value.String(), f.Source,
	)
	return err
}

// GetFacts loads every fact recorded for a case. Values are stored as text
// alongside their declared kind and parsed back on read so a malformed row
// surfaces as an error instead of a silently wrong comparison.
func (s *FactStore) GetFacts(ctx context.Context, caseID uuid.UUID) (domain.Facts, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key, kind, value FROM case_facts WHERE case_id = $1`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("facts query: %w", err)
	}
	defer rows.Close()

	facts := domain.Facts{}
	for rows.Next() {
		var key, kind, raw string
		if err := rows.Scan(&key, &kind, &raw); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		value, err := domain.ParseFactValue(kind, raw)
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", key, err)
		}
		facts[key] = value
	}
	return facts, rows.Err()
}
