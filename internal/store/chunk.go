package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/visaflow/visaflow/internal/domain"
)

type ChunkStore struct {
	db *pgxpool.Pool
}

func NewChunkStore(db *pgxpool.Pool) *ChunkStore {
	return &ChunkStore{db: db}
}

func (s *ChunkStore) Create(ctx context.Context, c *domain.Chunk) error {
	var embedding *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO document_chunks (document_version_id, text, embedding, visa_code, jurisdiction, document_created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		c.DocumentVersionID, c.Text, embedding, c.VisaCode, c.Jurisdiction, c.DocumentCreatedAt,
	).Scan(&c.ID, &c.CreatedAt)
}

// Search ranks chunks by cosine similarity descending, breaking ties with the
// most recent document version. Rows below minSimilarity never come back.
func (s *ChunkStore) Search(ctx context.Context, embedding []float32, filters domain.SearchFilters, topK int, minSimilarity float32) ([]domain.ChunkWithScore, error) {
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(embedding)

	conditions := []string{"embedding IS NOT NULL"}
	args := []any{vec}

	if filters.VisaCode != "" {
		conditions = append(conditions, fmt.Sprintf("visa_code = $%d", len(args)+1))
		args = append(args, filters.VisaCode)
	}
	if filters.Jurisdiction != "" {
		conditions = append(conditions, fmt.Sprintf("jurisdiction = $%d", len(args)+1))
		args = append(args, filters.Jurisdiction)
	}

	conditions = append(conditions, fmt.Sprintf("1 - (embedding <=> $1) >= $%d", len(args)+1))
	args = append(args, minSimilarity)

	limitParam := len(args) + 1
	args = append(args, topK)

	query := fmt.Sprintf(
		`SELECT id, document_version_id, text, visa_code, jurisdiction, document_created_at, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 WHERE %s
		 ORDER BY score DESC, document_created_at DESC
		 LIMIT $%d`,
		strings.Join(conditions, " AND "),
		limitParam,
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chunk search query: %w", err)
	}
	defer rows.Close()

	var results []domain.ChunkWithScore
	for rows.Next() {
		var cs domain.ChunkWithScore
		err := rows.Scan(
			&cs.ID, &cs.DocumentVersionID, &cs.Text, &cs.VisaCode, &cs.Jurisdiction,
			&cs.DocumentCreatedAt, &cs.CreatedAt,
			&cs.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		results = append(results, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunk search rows: %w", err)
	}

	return results, nil
}
