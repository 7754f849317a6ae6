package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          50 * time.Millisecond,
		MaxRequests:      1,
	}, nil)

	failing := func() error { return errors.New("boom") }

	if err := cb.Execute(context.Background(), failing); err == nil {
		t.Fatal("expected failure to propagate")
	}
	if cb.State() != CircuitBreakerClosed {
		t.Fatalf("expected closed after first failure, got %v", cb.State())
	}

	_ = cb.Execute(context.Background(), failing)
	if cb.State() != CircuitBreakerOpen {
		t.Fatalf("expected open after threshold failures, got %v", cb.State())
	}

	if err := cb.Execute(context.Background(), func() error { return nil }); err == nil {
		t.Fatal("expected circuit-open error while open")
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
		MaxRequests:      2,
	}, nil)

	_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	if cb.State() != CircuitBreakerOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected half-open probe to succeed, got %v", err)
	}
	if cb.State() != CircuitBreakerClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.State())
	}
}
