package llm

import (
	"context"

	"github.com/visaflow/visaflow/internal/domain"
)

// MockClient is a configurable completion client for testing.
// Set the response fields to control what Complete returns. CompleteErrors
// lets a test script a sequence of failures before success; once exhausted,
// CompleteError (or the response) applies to every further call.
type MockClient struct {
	CompleteResponse *domain.Completion
	CompleteError    error
	CompleteErrors   []error

	// Call tracking for assertions
	CompleteCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		CompleteResponse: &domain.Completion{
			Text:  "VERDICT: requires_review\nCONFIDENCE: 0.5\nSUMMARY: Mock assessment",
			Model: "mock",
			Usage: domain.TokenUsage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
		},
	}
}

func (c *MockClient) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (*domain.Completion, error) {
	c.CompleteCalls = append(c.CompleteCalls, prompt)
	if len(c.CompleteErrors) > 0 {
		err := c.CompleteErrors[0]
		c.CompleteErrors = c.CompleteErrors[1:]
		if err != nil {
			return nil, err
		}
		return c.CompleteResponse, nil
	}
	if c.CompleteError != nil {
		return nil, c.CompleteError
	}
	return c.CompleteResponse, nil
}

// Reset clears recorded calls and restores the default response.
func (c *MockClient) Reset() {
	c.CompleteResponse = NewMockClient().CompleteResponse
	c.CompleteError = nil
	c.CompleteErrors = nil
	c.CompleteCalls = nil
}
