package embedding

import (
	"fmt"
	"time"

	"github.com/visaflow/visaflow/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// defaultTimeout bounds a single embedding call when the caller passes no
// explicit timeout.
const defaultTimeout = 30 * time.Second

// NewClient creates an embedding client based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
// A non-positive timeout falls back to defaultTimeout.
func NewClient(provider, apiKey string, timeout time.Duration) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		return NewOpenAIClient(apiKey, timeout), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock)", provider)
	}
}
