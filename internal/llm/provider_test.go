package llm

import (
	"testing"
	"time"
)

func TestNewClient_UnknownProvider(t *testing.T) {
	if _, err := NewClient("cohere", "key", 0); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(ProviderOpenAI, "", 0); err == nil {
		t.Fatal("expected error for missing OpenAI key")
	}
	if _, err := NewClient(ProviderAnthropic, "", 0); err == nil {
		t.Fatal("expected error for missing Anthropic key")
	}
	if _, err := NewClient(ProviderMock, "", 0); err != nil {
		t.Fatalf("mock provider must not require a key, got %v", err)
	}
}

func TestClientTimeouts(t *testing.T) {
	oc := NewOpenAIClient("key", 5*time.Second)
	if oc.httpClient.Timeout != 5*time.Second {
		t.Fatalf("openai client timeout = %v, want 5s", oc.httpClient.Timeout)
	}

	ac := NewAnthropicClient("key", 12*time.Second)
	if ac.httpClient.Timeout != 12*time.Second {
		t.Fatalf("anthropic client timeout = %v, want 12s", ac.httpClient.Timeout)
	}
}

func TestClientTimeoutDefaultsWhenUnset(t *testing.T) {
	oc := NewOpenAIClient("key", 0)
	if oc.httpClient.Timeout != defaultTimeout {
		t.Fatalf("openai client timeout = %v, want default %v", oc.httpClient.Timeout, defaultTimeout)
	}

	ac := NewAnthropicClient("key", -time.Second)
	if ac.httpClient.Timeout != defaultTimeout {
		t.Fatalf("anthropic client timeout = %v, want default %v", ac.httpClient.Timeout, defaultTimeout)
	}
}
