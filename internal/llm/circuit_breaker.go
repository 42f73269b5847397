package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects requests to let a
// failing backend recover.
var ErrCircuitOpen = errors.New("llm: circuit breaker is open")

// CircuitBreakerConfig tunes the breaker guarding remote inference calls.
type CircuitBreakerConfig struct {
	// MaxFailures is the consecutive-failure count that trips the
	// circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before allowing
	// probe requests.
	OpenTimeout time.Duration
	// HalfOpenProbes is the number of successful probes required to
	// close the circuit again.
	HalfOpenProbes uint32
}

// DefaultCircuitBreakerConfig trips after 3 consecutive failures, stays
// open for 30 seconds and closes after 2 successful probes.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:    3,
		OpenTimeout:    30 * time.Second,
		HalfOpenProbes: 2,
	}
}

// circuitBreaker wraps gobreaker so a dead inference backend fails fast
// instead of stalling every worker on timeouts.
type circuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

func newCircuitBreaker(cfg CircuitBreakerConfig) *circuitBreaker {
	settings := gobreaker.Settings{
		Name:        "inference",
		MaxRequests: cfg.HalfOpenProbes,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}
	return &circuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// execute runs fn through the breaker, translating the open-state error
// into ErrCircuitOpen.
func (cb *circuitBreaker) execute(ctx context.Context, fn func() (any, error)) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := cb.breaker.Execute(func() (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result, nil
}

// state reports "closed", "open" or "half-open".
func (cb *circuitBreaker) state() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
