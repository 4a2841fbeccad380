// Package retry implements the single bounded retry-with-backoff policy used by
// every cluster call.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Policy configures bounded retries with exponential backoff.
type Policy struct {
	Attempts   int           // total attempts including the first call
	BaseDelay  time.Duration // delay before the second attempt
	MaxDelay   time.Duration // upper bound for a single delay
	Multiplier float64       // growth factor between delays
	Jitter     bool          // randomize each delay within [d/2, d]

	// Notify, if set, is called before every backoff sleep.
	Notify Observer
}

// Observer receives one call per retry: the operation, the attempt that failed
// (1-based), the delay before the next attempt and the error.
type Observer func(op string, attempt int, delay time.Duration, err error)

// DefaultPolicy returns 3 attempts starting at 200ms, doubling, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2,
		Jitter:     true,
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type observerKey struct{}

// WithObserver attaches an observer to ctx; Do notifies it in addition to Policy.Notify.
func WithObserver(ctx context.Context, obs Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

func observerFrom(ctx context.Context) Observer {
	if obs, ok := ctx.Value(observerKey{}).(Observer); ok {
		return obs
	}
	return nil
}

// Backoff returns the undithered delay after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.Backoff(attempt)
	if !p.Jitter || d < 2 {
		return d
	}
	half := d / 2
	return half + rand.N(half+1)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. Sleeps between attempts honor ctx.
func Do(
	ctx context.Context, p Policy, op string,
	fn func(ctx context.Context) error, retryable func(error) bool,
) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	ctxObs := observerFrom(ctx)

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return err
		}
		if attempt >= attempts {
			return &ExhaustedError{Op: op, Attempts: attempt, Err: err}
		}
		if ctx.Err() != nil {
			return errors.Join(err, ctx.Err())
		}

		d := p.delay(attempt)
		if p.Notify != nil {
			p.Notify(op, attempt, d, err)
		}
		if ctxObs != nil {
			ctxObs(op, attempt, d, err)
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
