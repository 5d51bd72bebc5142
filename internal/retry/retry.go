// Package retry provides a generic exponential-backoff retry executor with
// pluggable retryability predicates. Every outbound call in the pipeline goes
// through it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP-style status code.
// The default predicates use it to classify upstream failures.
type StatusCoder interface {
	StatusCode() int
}

// Error wraps the last error after all attempts are exhausted (or the
// predicate declined to retry).
type Error struct {
	Attempts int
	LastErr  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempt(s): %v", e.Attempts, e.LastErr)
}

func (e *Error) Unwrap() error { return e.LastErr }

// Options configures a retry run.
type Options struct {
	MaxRetries    int           // additional attempts after the first
	BaseDelay     time.Duration // delay before the first retry
	BackoffFactor float64       // multiplier applied per attempt
	MaxDelay      time.Duration // cap on a single sleep
	// RetryCondition decides whether an error is worth another attempt.
	// When nil, DefaultRetryCondition is used.
	RetryCondition func(error) bool
	// OnRetry fires before each backoff sleep, for observability.
	OnRetry func(attempt int, err error)
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 200 * time.Millisecond
	}
	if o.BackoffFactor <= 0 {
		o.BackoffFactor = 2
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.RetryCondition == nil {
		o.RetryCondition = DefaultRetryCondition
	}
	return o
}

// APICallOptions is the preset for ordinary API calls: more retries, and 429s
// and 5xx responses are retried.
func APICallOptions() Options {
	return Options{
		MaxRetries:     3,
		BaseDelay:      250 * time.Millisecond,
		BackoffFactor:  2,
		MaxDelay:       8 * time.Second,
		RetryCondition: DefaultRetryCondition,
	}
}

// AgentCallOptions is the preset for model invocations. Model calls are
// expensive, so the attempt budget is smaller, and quota-exhaustion and 400
// responses are never retried.
func AgentCallOptions() Options {
	return Options{
		MaxRetries:     2,
		BaseDelay:      500 * time.Millisecond,
		BackoffFactor:  2,
		MaxDelay:       5 * time.Second,
		RetryCondition: AgentCallRetryCondition,
	}
}

// DefaultRetryCondition retries network failures, 5xx responses, and 429s.
// Other 4xx responses are permanent and never retried.
func DefaultRetryCondition(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := statusCode(err); ok {
		if code == http.StatusTooManyRequests {
			return true
		}
		if code >= 500 {
			return true
		}
		return false
	}
	// No status available: treat as a network-level failure.
	return true
}

// AgentCallRetryCondition is DefaultRetryCondition with an explicit refusal
// for quota-exceeded errors and 400 responses.
func AgentCallRetryCondition(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(strings.ToLower(err.Error()), "quota exceeded") {
		return false
	}
	if code, ok := statusCode(err); ok && code == http.StatusBadRequest {
		return false
	}
	return DefaultRetryCondition(err)
}

func statusCode(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

// Do runs fn until it succeeds, the predicate declines, or the attempt budget
// is spent. The backoff sleep for attempt n is
// min(BaseDelay * BackoffFactor^(n-1), MaxDelay). Context cancellation aborts
// the wait immediately.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	opts = opts.withDefaults()

	var lastErr error
	attempts := opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts || !opts.RetryCondition(lastErr) {
			return &Error{Attempts: attempt, LastErr: lastErr}
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt, lastErr)
		}

		delay := opts.BaseDelay
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * opts.BackoffFactor)
			if delay >= opts.MaxDelay {
				delay = opts.MaxDelay
				break
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return &Error{Attempts: attempts, LastErr: lastErr}
}

// DoValue is Do for functions that return a value alongside the error.
func DoValue[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, opts, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
