package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRun_AlwaysFailingExhaustsBudget(t *testing.T) {
	attempts := 0
	err := Run(context.Background(), Policy{MaxAttempts: 3, Backoff: time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			return errors.New("boom")
		})

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestRun_SucceedsOnThirdAttempt(t *testing.T) {
	attempts := 0
	err := Run(context.Background(), Policy{MaxAttempts: 3, Backoff: time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("not yet")
			}
			return nil
		})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestRun_FirstAttemptSuccessSkipsBackoff(t *testing.T) {
	start := time.Now()
	err := Run(context.Background(), Policy{MaxAttempts: 3, Backoff: time.Second},
		func(ctx context.Context) error { return nil })

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("backoff should not apply after success")
	}
}

func TestRun_NoBackoffAfterLastAttempt(t *testing.T) {
	start := time.Now()
	_ = Run(context.Background(), Policy{MaxAttempts: 1, Backoff: time.Second},
		func(ctx context.Context) error { return errors.New("boom") })

	if time.Since(start) > 100*time.Millisecond {
		t.Error("backoff should not apply after the last attempt")
	}
}

func TestRun_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, Policy{MaxAttempts: 5, Backoff: time.Minute},
		func(ctx context.Context) error {
			attempts++
			return errors.New("boom")
		})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestRun_ZeroPolicyMeansSingleAttempt(t *testing.T) {
	attempts := 0
	err := Run(context.Background(), Policy{}, func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}
