package gateway

import (
	"errors"
	"fmt"
)

// ErrRetryInterrupted is returned when the context is cancelled while
// waiting between retry attempts.
var ErrRetryInterrupted = errors.New("retry interrupted")

// ProviderError is a non-2xx response from the model provider.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status indicates a transient condition.
// Rate limits and server errors are retryable; auth failures and other
// client errors are not.
func (e *ProviderError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// ModelUnavailableError is returned when the provider could not serve a
// request after all retry attempts, or failed in a way retrying cannot fix.
type ModelUnavailableError struct {
	Attempts int
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}
