package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// maxBackoff caps the delay between attempts regardless of growth.
const maxBackoff = 60 * time.Second

// RetryPolicy retries transient provider failures with exponential backoff
// and jitter.
type RetryPolicy struct {
	maxAttempts int
	baseBackoff time.Duration
	jitter      float64
	logger      *zap.Logger
}

// NewRetryPolicy creates a policy. maxAttempts is clamped to at least 1,
// baseBackoff to a positive duration, and jitter to [0,1].
func NewRetryPolicy(maxAttempts int, baseBackoff time.Duration, jitter float64, logger *zap.Logger) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseBackoff <= 0 {
		baseBackoff = 500 * time.Millisecond
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		jitter:      jitter,
		logger:      logger,
	}
}

// Execute runs fn up to maxAttempts times. Non-retryable failures stop
// immediately. Exhaustion and non-retryable failures are both reported as
// ModelUnavailableError; cancellation during a backoff sleep is reported as
// ErrRetryInterrupted.
func (p *RetryPolicy) Execute(ctx context.Context, op string, fn func() error) error {
	var last error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		last = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !retryable(err) {
			return &ModelUnavailableError{Attempts: attempt, Err: err}
		}
		if attempt == p.maxAttempts {
			break
		}
		delay := p.backoff(attempt)
		p.logger.Warn("provider call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrRetryInterrupted, ctx.Err())
		case <-time.After(delay):
		}
	}
	return &ModelUnavailableError{Attempts: p.maxAttempts, Err: last}
}

// backoff returns base*2^(attempt-1) scaled by a random factor in
// [1-jitter, 1+jitter], capped at maxBackoff.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	d := p.baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff || d <= 0 {
			d = maxBackoff
			break
		}
	}
	if p.jitter > 0 {
		factor := 1 + (rand.Float64()*2-1)*p.jitter
		d = time.Duration(float64(d) * factor)
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	if d < 0 {
		d = 0
	}
	return d
}

// retryable classifies an error. Provider status errors decide by status;
// anything else (transport failures, timeouts) is assumed transient.
func retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return true
}
