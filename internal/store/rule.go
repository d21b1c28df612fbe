package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/visaflow/visaflow/internal/domain"
)

type RuleStore struct {
	db *pgxpool.Pool
}

func NewRuleStore(db *pgxpool.Pool) *RuleStore {
	return &RuleStore{db: db}
}

// Create inserts a rule version with its requirement set stored as JSONB.
// Requirements are immutable once written; a correction means publishing a
// new version.
func (s *RuleStore) Create(ctx context.Context, rv *domain.RuleVersion) error {
	requirements, err := json.Marshal(rv.Requirements)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO rule_versions (visa_type_id, visa_code, jurisdiction, effective_from, effective_to, published, requirements)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		rv.VisaTypeID, rv.VisaCode, rv.Jurisdiction, rv.EffectiveFrom, rv.EffectiveTo, rv.Published, requirements,
	).Scan(&rv.ID, &rv.CreatedAt)
}

func (s *RuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RuleVersion, error) {
	rv := &domain.RuleVersion{}
	var requirements []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, visa_type_id, visa_code, jurisdiction, effective_from, effective_to, published, requirements, created_at
		 FROM rule_versions WHERE id = $1`,
		id,
	).Scan(&rv.ID, &rv.VisaTypeID, &rv.VisaCode, &rv.Jurisdiction, &rv.EffectiveFrom, &rv.EffectiveTo, &rv.Published, &requirements, &rv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(requirements, &rv.Requirements); err != nil {
		return nil, fmt.Errorf("unmarshal requirements: %w", err)
	}
	return rv, nil
}

// GetActiveVersions returns every published version whose effective window
// covers asOf, newest first. Selection among them is the engine's concern.
func (s *RuleStore) GetActiveVersions(ctx context.Context, visaTypeID uuid.UUID, asOf time.Time) ([]domain.RuleVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, visa_type_id, visa_code, jurisdiction, effective_from, effective_to, published, requirements, created_at
		 FROM rule_versions
		 WHERE visa_type_id = $1
		   AND published = true
		   AND effective_from <= $2
		   AND (effective_to IS NULL OR effective_to > $2)
		 ORDER BY created_at DESC`,
		visaTypeID, asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("active versions query: %w", err)
	}
	defer rows.Close()

	var versions []domain.RuleVersion
	for rows.Next() {
		var rv domain.RuleVersion
		var requirements []byte
		if err := rows.Scan(&rv.ID, &rv.VisaTypeID, &rv.VisaCode, &rv.Jurisdiction, &rv.EffectiveFrom, &rv.EffectiveTo, &rv.Published, &requirements, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule version row: %w", err)
		}
		if err := json.Unmarshal(requirements, &rv.Requirements); err != nil {
			return nil, fmt.Errorf("unmarshal requirements for %s: %w", rv.ID, err)
		}
		versions = append(versions, rv)
	}
	return versions, rows.Err()
}
