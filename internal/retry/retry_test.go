package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxAttempts int, retryable func(error) bool) Config {
	return Config{
		MaxAttempts: maxAttempts,
		InitialWait: time.Millisecond,
		MaxWait:     2 * time.Millisecond,
		Retryable:   retryable,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3, nil), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsAtAttemptBudget(t *testing.T) {
	sentinel := errors.New("still broken")
	attempts := 0
	err := Do(context.Background(), fastConfig(3, nil), func(context.Context) error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Do() error = %v, want sentinel", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	fatal := errors.New("auth failed")
	attempts := 0
	err := Do(context.Background(), fastConfig(5, func(err error) bool {
		return !errors.Is(err, fatal)
	}), func(context.Context) error {
		attempts++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("Do() error = %v, want fatal", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(5, nil), func(context.Context) error {
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("Do() with cancelled context should fail")
	}
}
