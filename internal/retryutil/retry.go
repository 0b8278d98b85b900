// Package retryutil provides a bounded exponential-backoff retry policy
// for transient provider failures. Deterministic work must not go through
// it; only network call boundaries do.
package retryutil

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// Sleep is swappable for tests. Nil means a context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   4 * time.Second,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Delay returns the pause before retry attempt n (1-based: Delay(1) is the
// pause after the first failure), capped at MaxDelay.
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. The last
// error is returned once the budget is exhausted. Context cancellation
// aborts the wait and returns the context error.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context) error) error {
	p = p.normalized()
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt == p.MaxAttempts {
			break
		}
		delay := p.Delay(attempt)
		if logger != nil {
			logger.Warn(name+"_retry", "attempt", attempt, "delay", delay.String(), "error", lastErr.Error())
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable: Do returns the wrapped error
// immediately instead of burning the remaining attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
