package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr struct {
	code int
}

func (e *statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) StatusCode() int { return e.code }

func fastOptions(maxRetries int, cond func(error) bool) Options {
	return Options{
		MaxRetries:     maxRetries,
		BaseDelay:      time.Millisecond,
		BackoffFactor:  2,
		MaxDelay:       5 * time.Millisecond,
		RetryCondition: cond,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastOptions(3, nil), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	boom := &statusErr{code: 503}
	err := Do(context.Background(), fastOptions(2, nil), func(context.Context) error {
		calls++
		return boom
	})

	// maxRetries=2 means exactly 3 invocations.
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *retry.Error, got %T: %v", err, err)
	}
	if re.Attempts != 3 {
		t.Errorf("expected Attempts=3, got %d", re.Attempts)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped last error to be the original failure")
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastOptions(5, nil), func(context.Context) error {
		calls++
		return &statusErr{code: 400}
	})
	if calls != 1 {
		t.Errorf("expected exactly 1 call for a 400, got %d", calls)
	}
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *retry.Error, got %T", err)
	}
	if re.Attempts != 1 {
		t.Errorf("expected Attempts=1, got %d", re.Attempts)
	}
}

func TestDo_RetriesRateLimited(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastOptions(1, nil), func(context.Context) error {
		calls++
		if calls == 1 {
			return &statusErr{code: 429}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_OnRetryFires(t *testing.T) {
	var attempts []int
	opts := fastOptions(2, nil)
	opts.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}
	_ = Do(context.Background(), opts, func(context.Context) error {
		return &statusErr{code: 500}
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected OnRetry for attempts [1 2], got %v", attempts)
	}
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := Options{
		MaxRetries: 3,
		BaseDelay:  time.Hour, // would hang without cancellation
	}
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, opts, func(context.Context) error {
			return &statusErr{code: 500}
		})
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe context cancellation")
	}
}

func TestAgentCallRetryCondition(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"quota exceeded", errors.New("monthly quota exceeded for key"), false},
		{"bad request", &statusErr{code: 400}, false},
		{"rate limited", &statusErr{code: 429}, true},
		{"server error", &statusErr{code: 502}, true},
		{"not found", &statusErr{code: 404}, false},
		{"network", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AgentCallRetryCondition(tt.err); got != tt.want {
				t.Errorf("AgentCallRetryCondition(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoValue(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), fastOptions(2, nil), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", &statusErr{code: 500}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Errorf("expected %q, got %q", "ok", v)
	}
}
