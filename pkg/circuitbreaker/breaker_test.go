package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("cache", Config{FailureThreshold: 2, Timeout: time.Minute})

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: expected backend error, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open circuit, got %s", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open circuit should short-circuit, err=%v called=%v", err, called)
	}
}

func TestHalfOpenRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("cache", Config{
		FailureThreshold: 1,
		Timeout:          time.Second,
		now:              func() time.Time { return now },
	})

	_ = cb.Execute(func() error { return errBackend })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	now = now.Add(2 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", cb.State())
	}

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful trial, got %s", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("cache", Config{
		FailureThreshold: 1,
		Timeout:          time.Second,
		now:              func() time.Time { return now },
	})

	_ = cb.Execute(func() error { return errBackend })
	now = now.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errBackend })

	if cb.State() != StateOpen {
		t.Errorf("failed trial should reopen the circuit, got %s", cb.State())
	}
}
