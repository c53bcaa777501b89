// Package resilience provides retry and circuit-breaker wrappers for
// external collaborator calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the circuit breaker rejects a call
// without attempting it.
var ErrBreakerOpen = errors.New("circuit breaker open")

// RetryPolicy controls exponential backoff around a failing call.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy matches the collaborator defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry runs fn until it succeeds, the retry budget is spent, or ctx is
// cancelled. The last error is returned when all attempts fail.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		// Breaker rejections are terminal; waiting out the backoff
		// will not close it any sooner than its own recovery timer.
		if errors.Is(lastErr, ErrBreakerOpen) {
			return lastErr
		}
		if attempt < p.MaxRetries {
			select {
			case <-time.After(p.delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker is a circuit breaker. After FailureThreshold consecutive
// failures it rejects calls for RecoveryTimeout, then lets one probe
// call through (half-open); a success closes it again.
//
// A Breaker is scoped per adapter, not per session: one failing
// collaborator degrades only the steps that use it.
type Breaker struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       breakerState
	logger      *log.Logger
}

// NewBreaker creates a circuit breaker with the given thresholds.
func NewBreaker(failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = time.Minute
	}
	return &Breaker{
		FailureThreshold: failureThreshold,
		RecoveryTimeout:  recoveryTimeout,
		logger:           log.New(log.Writer(), "[BREAKER] ", log.LstdFlags),
	}
}

// State reports the current breaker state as a string.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// Do executes fn through the breaker.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	b.mu.Lock()
	switch b.state {
	case stateOpen:
		if time.Since(b.lastFailure) < b.RecoveryTimeout {
			remaining := b.RecoveryTimeout - time.Since(b.lastFailure)
			b.mu.Unlock()
			return fmt.Errorf("%w: retry in %s", ErrBreakerOpen, remaining.Round(time.Second))
		}
		b.state = stateHalfOpen
		b.logger.Printf("half-open, probing")
	}
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == stateHalfOpen || b.failures >= b.FailureThreshold {
			if b.state != stateOpen {
				b.logger.Printf("open after %d consecutive failures", b.failures)
			}
			b.state = stateOpen
		}
		return err
	}
	b.failures = 0
	b.state = stateClosed
	return nil
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = stateClosed
}
