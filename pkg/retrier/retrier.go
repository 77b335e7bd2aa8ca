// Package retrier retries fallible operations with exponential backoff.
package retrier

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

const (
	defaultInitialInterval = 1 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxRetries      = 5
)

// Retrier executes functions with exponential backoff and jitter between
// attempts.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int
	jitter          bool
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the first retry interval.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.initialInterval = d
	}
}

// WithMaxInterval caps the retry interval.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.maxInterval = d
	}
}

// WithMultiplier sets the backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(r *Retrier) {
		r.multiplier = m
	}
}

// WithMaxRetries sets how many times a failed call is retried.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		r.maxRetries = n
	}
}

// WithoutJitter disables randomization of the retry intervals.
func WithoutJitter() Option {
	return func(r *Retrier) {
		r.jitter = false
	}
}

// New creates a Retrier with default values and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxRetries:      defaultMaxRetries,
		jitter:          true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do executes fn until it succeeds, the retry budget is exhausted, or the
// context is cancelled. The last error is returned on exhaustion.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    r.initialInterval,
		Max:    r.maxInterval,
		Factor: r.multiplier,
		Jitter: r.jitter,
	}

	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.Duration()):
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
	}

	return err
}

// DoWithData executes fn with retries and returns its value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
