package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/visaflow/visaflow/internal/domain"
	"github.com/visaflow/visaflow/internal/retry"
	"go.uber.org/zap"
)

const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.7
)

var ErrEmbeddingUnavailable = errors.New("embedding client not configured")

// Retriever embeds a query built from the case facts and searches the stored
// document chunks for the closest guidance passages. An empty result is a
// valid outcome, never a fault: it just means the reasoning step runs with no
// supporting context.
type Retriever struct {
	embedder      domain.EmbeddingClient
	chunks        domain.ChunkStore
	retryCfg      *retry.Config
	topK          int
	minSimilarity float32
	logger        *zap.Logger
}

func NewRetriever(ec domain.EmbeddingClient, cs domain.ChunkStore, logger *zap.Logger) *Retriever {
	return &Retriever{
		embedder:      ec,
		chunks:        cs,
		retryCfg:      retry.DefaultConfig(),
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
		logger:        logger,
	}
}

// SetLimits overrides topK and the similarity floor. Zero values keep the
// defaults.
func (r *Retriever) SetLimits(topK int, minSimilarity float32) {
	if topK > 0 {
		r.topK = topK
	}
	if minSimilarity > 0 {
		r.minSimilarity = minSimilarity
	}
}

// SetRetryConfig overrides the backoff settings for the embed and search calls.
func (r *Retriever) SetRetryConfig(cfg *retry.Config) {
	if cfg != nil {
		r.retryCfg = cfg
	}
}

// BuildQuery serialises the facts into retrieval text. Keys are sorted so the
// same facts always produce the same query.
func BuildQuery(facts domain.Facts, visaCode string) string {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("visa category ")
	sb.WriteString(visaCode)
	sb.WriteString(" eligibility")
	for _, k := range keys {
		sb.WriteString("; ")
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(facts[k].String())
	}
	return sb.String()
}

// Retrieve runs the embed and search steps. Transient failures on either step
// are retried with backoff; exhaustion surfaces as an error so the caller can
// skip the AI path.
func (r *Retriever) Retrieve(ctx context.Context, facts domain.Facts, filters domain.SearchFilters) ([]domain.ChunkWithScore, error) {
	if r.embedder == nil {
		return nil, ErrEmbeddingUnavailable
	}

	query := BuildQuery(facts, filters.VisaCode)

	vector, err := retry.DoWithResult(ctx, r.retryCfg, func() ([]float32, error) {
		return r.embedder.Embed(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("embed retrieval query: %w", err)
	}

	results, err := retry.DoWithResult(ctx, r.retryCfg, func() ([]domain.ChunkWithScore, error) {
		return r.chunks.Search(ctx, vector, filters, r.topK, r.minSimilarity)
	})
	if err != nil {
		return nil, fmt.Errorf("chunk search: %w", err)
	}

	if len(results) == 0 {
		r.logger.Debug("no chunks above similarity floor",
			zap.String("visa_code", filters.VisaCode),
			zap.Float32("min_similarity", r.minSimilarity),
		)
	}
	return results, nil
}
