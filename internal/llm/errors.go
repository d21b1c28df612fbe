package llm

import (
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from a model provider. It carries the status
// code so the retry layer can distinguish transient failures from permanent
// ones.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether retrying the same request could succeed.
// Rate limits, timeouts, and server-side failures are retryable; auth and
// validation errors are not.
func (e *APIError) IsRetryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}
