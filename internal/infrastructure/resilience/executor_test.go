package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor(fastPolicy(), nil)

	attempts := 0
	errFlaky := errors.New("flaky")
	err := exec.Execute(context.Background(), "embed", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errFlaky
		}
		return nil
	}, func(err error) Verdict {
		return Verdict{Retry: errors.Is(err, errFlaky), Trip: true}
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteStopsOnNonRetryableVerdict(t *testing.T) {
	exec := NewExecutor(fastPolicy(), nil)

	attempts := 0
	errFatal := errors.New("schema mismatch")
	err := exec.Execute(context.Background(), "embed", func(context.Context) error {
		attempts++
		return errFatal
	}, func(error) Verdict {
		return Verdict{}
	})
	if !errors.Is(err, errFatal) {
		t.Fatalf("Execute() error = %v, want %v", err, errFatal)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestExecuteReturnsLastErrorWhenAttemptsExhausted(t *testing.T) {
	exec := NewExecutor(fastPolicy(), nil)

	attempts := 0
	errFlaky := errors.New("flaky")
	err := exec.Execute(context.Background(), "publish", func(context.Context) error {
		attempts++
		return errFlaky
	}, func(error) Verdict {
		return Verdict{Retry: true, Trip: true}
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("Execute() error = %v, want %v", err, errFlaky)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteHonorsCancelledContext(t *testing.T) {
	exec := NewExecutor(fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exec.Execute(ctx, "publish", func(context.Context) error {
		t.Fatal("operation must not run after cancellation")
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestExecuteOpensBreakerAfterTrippedFailures(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 1
	policy.BreakerEnabled = true
	policy.BreakerMinRequests = 2
	policy.BreakerFailureRatio = 0.5
	policy.BreakerOpenTimeout = 50 * time.Millisecond
	policy.BreakerHalfOpenMaxCalls = 1
	exec := NewExecutor(policy, nil)

	errDown := errors.New("backend down")
	classify := func(error) Verdict {
		return Verdict{Trip: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "search", func(context.Context) error {
			return errDown
		}, classify)
		if !errors.Is(err, errDown) {
			t.Fatalf("iteration %d: Execute() error = %v, want %v", i, err, errDown)
		}
	}

	err := exec.Execute(context.Background(), "search", func(context.Context) error {
		t.Fatal("open breaker must not invoke operation")
		return nil
	}, classify)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("Execute() error = %v, want %v", err, gobreaker.ErrOpenState)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("IsCircuitOpen(%v) = false, want true", err)
	}
}

func TestPolicyDefaultsFillZeroFields(t *testing.T) {
	got := Policy{}.withDefaults()
	want := DefaultPolicy()
	want.BreakerEnabled = false
	if got != want {
		t.Fatalf("withDefaults() = %+v, want %+v", got, want)
	}
}
