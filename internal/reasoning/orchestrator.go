package reasoning

import (
	"context"
	"errors"
	"fmt"

	"github.com/visaflow/visaflow/internal/domain"
	"github.com/visaflow/visaflow/internal/retrieval"
	"github.com/visaflow/visaflow/internal/retry"
	"github.com/visaflow/visaflow/internal/rules"
	"go.uber.org/zap"
)

var ErrModelUnavailable = errors.New("completion client not configured")

// Low-variance decoding keeps verdicts as reproducible as the provider
// allows.
const (
	completionTemperature = 0.0
	completionMaxTokens   = 1024
)

// Result is produced once per AI reasoning invocation. Verdict may be
// OutcomeUnknown and ConfidenceKnown false when the model response carried no
// parsable markers; the caller then falls back to the rule verdict.
type Result struct {
	Verdict         domain.Outcome
	Confidence      float64
	ConfidenceKnown bool
	Summary         string
	Citations       []domain.Citation
	Log             domain.ReasoningLog
	ContextChunks   int
}

// Orchestrator drives the retrieval-augmented reasoning pass: retrieve
// context, build the prompt, call the model with bounded backoff, parse the
// verdict. Every error it returns means "skip the AI path", never "abort the
// check".
type Orchestrator struct {
	retriever *retrieval.Retriever
	client    domain.CompletionClient
	retryCfg  *retry.Config
	logger    *zap.Logger
}

func NewOrchestrator(r *retrieval.Retriever, client domain.CompletionClient, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		retriever: r,
		client:    client,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger,
	}
}

// SetRetryConfig overrides the backoff settings for model calls.
func (o *Orchestrator) SetRetryConfig(cfg *retry.Config) {
	if cfg != nil {
		o.retryCfg = cfg
	}
}

// Reason runs the full pipeline for one check. The returned Result carries
// the audit log regardless of how well the response parsed.
func (o *Orchestrator) Reason(ctx context.Context, facts domain.Facts, rv *domain.RuleVersion, agg rules.Aggregate) (*Result, error) {
	if o.client == nil {
		return nil, ErrModelUnavailable
	}

	filters := domain.SearchFilters{VisaCode: rv.VisaCode, Jurisdiction: rv.Jurisdiction}
	chunks, err := o.retriever.Retrieve(ctx, facts, filters)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := ConstructPrompt(chunks, agg, facts)

	completion, err := retry.DoWithResult(ctx, o.retryCfg, func() (*domain.Completion, error) {
		return o.client.Complete(ctx, prompt, domain.CompletionOptions{
			Temperature: completionTemperature,
			MaxTokens:   completionMaxTokens,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("model completion: %w", err)
	}

	result := &Result{
		Verdict:       ExtractOutcome(completion.Text),
		Summary:       ExtractSummary(completion.Text),
		Citations:     ExtractCitations(completion.Text, chunks),
		ContextChunks: len(chunks),
		Log: domain.ReasoningLog{
			Prompt:       prompt,
			ResponseText: completion.Text,
			ModelName:    completion.Model,
			TokenUsage:   completion.Usage,
		},
	}
	result.Confidence, result.ConfidenceKnown = ExtractConfidence(completion.Text)

	if result.Verdict == domain.OutcomeUnknown {
		o.logger.Warn("model response carried no parsable verdict",
			zap.String("model", completion.Model),
			zap.Int("response_len", len(completion.Text)),
		)
	}

	return result, nil
}
