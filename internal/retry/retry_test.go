package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, isTransient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), fastPolicy(5), "op", func(context.Context) error {
		calls++
		return fatal
	}, isTransient)
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(4), "cluster.health", func(context.Context) error {
		calls++
		return errTransient
	}, isTransient)

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %T", err)
	}
	if ex.Attempts != 4 || calls != 4 {
		t.Errorf("attempts = %d, calls = %d, want 4", ex.Attempts, calls)
	}
	if !errors.Is(err, errTransient) {
		t.Error("exhausted error should unwrap to the last error")
	}
}

func TestDo_ObserversNotified(t *testing.T) {
	var policyCalls, ctxCalls []int
	p := fastPolicy(3)
	p.Notify = func(_ string, attempt int, _ time.Duration, _ error) {
		policyCalls = append(policyCalls, attempt)
	}
	ctx := WithObserver(context.Background(), func(op string, attempt int, _ time.Duration, _ error) {
		if op != "indices.count" {
			t.Errorf("op = %q", op)
		}
		ctxCalls = append(ctxCalls, attempt)
	})

	_ = Do(ctx, p, "indices.count", func(context.Context) error { return errTransient }, isTransient)

	if len(policyCalls) != 2 || len(ctxCalls) != 2 {
		t.Fatalf("expected 2 notifications each, got %v / %v", policyCalls, ctxCalls)
	}
	if ctxCalls[0] != 1 || ctxCalls[1] != 2 {
		t.Errorf("unexpected attempts: %v", ctxCalls)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, BaseDelay: time.Hour}
	calls := 0
	go cancel()
	err := Do(ctx, p, "op", func(context.Context) error {
		calls++
		return errTransient
	}, isTransient)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoff(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{30, time.Second},
	}
	for _, tc := range tests {
		if got := p.Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestDelay_JitterWithinBounds(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: true}
	for i := 0; i < 100; i++ {
		d := p.delay(2)
		if d < 100*time.Millisecond || d > 200*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 200ms]", d)
		}
	}
}
