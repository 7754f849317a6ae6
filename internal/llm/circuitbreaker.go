package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// CircuitBreakerState is the current state of a circuit breaker.
type CircuitBreakerState int32

const (
	CircuitBreakerClosed CircuitBreakerState = iota
	CircuitBreakerOpen
	CircuitBreakerHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerClosed:
		return "closed"
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes the failure/success thresholds and
// cooldown of a CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	MaxRequests      int
	OnStateChange    func(name string, from, to CircuitBreakerState)
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          60 * time.Second,
		MaxRequests:      3,
		OnStateChange:    func(string, CircuitBreakerState, CircuitBreakerState) {},
	}
}

// CircuitBreaker wraps the LLM provider so a failing endpoint stops
// receiving traffic for Timeout before probing again with half-open
// requests. Adapted from internal/core/resilience.go's circuit
// breaker for the LLM transport specifically.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger *slog.Logger

	mu              sync.RWMutex
	state           CircuitBreakerState
	generation      uint64
	failures        int64
	successes       int64
	requests        int64
	expiry          time.Time
	lastFailureTime time.Time
}

func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	if config.OnStateChange == nil {
		config.OnStateChange = func(string, CircuitBreakerState, CircuitBreakerState) {}
	}
	return &CircuitBreaker{name: name, config: config, logger: logger, state: CircuitBreakerClosed}
}

// Execute runs fn if the breaker allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	generation, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.onFailure(generation)
			panic(r)
		}
	}()

	if err := fn(); err != nil {
		cb.onFailure(generation)
		return err
	}

	cb.onSuccess(generation)
	return nil
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

type CircuitBreakerMetrics struct {
	Name            string
	State           CircuitBreakerState
	Failures        int64
	Successes       int64
	Requests        int64
	LastFailureTime time.Time
}

func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return CircuitBreakerMetrics{
		Name:            cb.name,
		State:           cb.state,
		Failures:        atomic.LoadInt64(&cb.failures),
		Successes:       atomic.LoadInt64(&cb.successes),
		Requests:        atomic.LoadInt64(&cb.requests),
		LastFailureTime: cb.lastFailureTime,
	}
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	atomic.AddInt64(&cb.requests, 1)

	switch cb.state {
	case CircuitBreakerClosed:
		return cb.generation, nil
	case CircuitBreakerOpen:
		if time.Now().After(cb.expiry) {
			cb.toHalfOpen()
			return cb.generation, nil
		}
		return 0, fmt.Errorf("circuit breaker %s is open", cb.name)
	case CircuitBreakerHalfOpen:
		if cb.requests <= int64(cb.config.MaxRequests) {
			return cb.generation, nil
		}
		return 0, fmt.Errorf("circuit breaker %s half-open max requests exceeded", cb.name)
	default:
		return 0, fmt.Errorf("circuit breaker %s unknown state: %v", cb.name, cb.state)
	}
}

func (cb *CircuitBreaker) onSuccess(generation uint64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if generation != cb.generation {
		return
	}
	atomic.AddInt64(&cb.successes, 1)

	if cb.state == CircuitBreakerHalfOpen && atomic.LoadInt64(&cb.successes) >= int64(cb.config.SuccessThreshold) {
		cb.toClosed()
	}
}

func (cb *CircuitBreaker) onFailure(generation uint64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if generation != cb.generation {
		return
	}
	atomic.AddInt64(&cb.failures, 1)
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitBreakerClosed:
		if atomic.LoadInt64(&cb.failures) >= int64(cb.config.FailureThreshold) {
			cb.toOpen()
		}
	case CircuitBreakerHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.setState(CircuitBreakerOpen)
	cb.expiry = time.Now().Add(cb.config.Timeout)
	cb.generation++
	atomic.StoreInt64(&cb.failures, 0)
	atomic.StoreInt64(&cb.successes, 0)
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.setState(CircuitBreakerHalfOpen)
	cb.generation++
	atomic.StoreInt64(&cb.requests, 0)
	atomic.StoreInt64(&cb.successes, 0)
}

func (cb *CircuitBreaker) toClosed() {
	cb.setState(CircuitBreakerClosed)
	cb.generation++
	atomic.StoreInt64(&cb.failures, 0)
	atomic.StoreInt64(&cb.successes, 0)
}

func (cb *CircuitBreaker) setState(state CircuitBreakerState) {
	if cb.state == state {
		return
	}
	prev := cb.state
	cb.state = state
	cb.logger.Info("circuit breaker state change", "name", cb.name, "from", prev.String(), "to", state.String())
	cb.config.OnStateChange(cb.name, prev, state)
}
