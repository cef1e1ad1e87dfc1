package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock_news/internal/httpclient"
)

// ErrExhausted is returned once every attempt failed with a transient error.
var ErrExhausted = errors.New("retry attempts exhausted")

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Number int
	Err    error
	Delay  time.Duration
}

// Policy configures Do. Zero fields fall back to the defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retryable decides whether an error is transient. Defaults to
	// httpclient.IsTransient.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(Attempt)
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Retryable == nil {
		p.Retryable = httpclient.IsTransient
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

// Backoff returns the delay after the given 0-based attempt: BaseDelay*2^attempt, capped.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. Non-retryable errors are returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		if !p.Retryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(Attempt{Number: attempt + 1, Err: err, Delay: delay})
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
