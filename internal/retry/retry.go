// Package retry runs an operation with exponential backoff for errors marked
// as transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Policy controls the number of extra attempts and the wait between them.
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         bool
}

// DefaultPolicy retries once after a short pause.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
	}
}

// TransientError marks an error as worth another attempt.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %v)", e.Err, e.RetryAfter)
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so that Do retries it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// TransientAfter wraps err with a server-provided delay hint.
func TransientAfter(err error, delay time.Duration) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err, RetryAfter: delay}
}

// IsTransient reports whether err was marked transient.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// Do calls fn until it succeeds, returns a non-transient error, the retry
// budget is spent, or ctx is done. The returned error wraps the last failure.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == policy.MaxRetries {
			break
		}

		wait := policy.backoff(attempt)
		var t *TransientError
		if errors.As(err, &t) && t.RetryAfter > 0 {
			wait = t.RetryAfter
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), lastErr))
		case <-timer.C:
		}
	}

	if IsTransient(lastErr) && policy.MaxRetries > 0 {
		return fmt.Errorf("gave up after %d retries: %w", policy.MaxRetries, lastErr)
	}
	return lastErr
}

func (p Policy) backoff(attempt int) time.Duration {
	factor := p.Multiplier
	if factor <= 0 {
		factor = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(factor, float64(attempt))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if p.Jitter {
		d += d * 0.1 * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}
