package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RetryPolicy decides whether a handshake may run now.
type RetryPolicy interface {
	Execute(handshake func() error) error
}

// Immediate lets every call retry. It suits host-managed processes whose
// instances are short-lived.
type Immediate struct{}

// Execute runs the handshake unconditionally.
func (Immediate) Execute(handshake func() error) error {
	return handshake()
}

// BreakerConfig holds configuration for the handshake circuit breaker
type BreakerConfig struct {
	Name string
	// Failures is the number of consecutive failed handshakes that opens
	// the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open before one probe
	// handshake is allowed.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the breaker used by long-running servers.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:     "database-handshake",
		Failures: 5,
		Cooldown: 30 * time.Second,
	}
}

// Breaker stops handshakes during a sustained outage so a long-running
// process does not hammer the database on every request.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker retry policy.
func NewBreaker(config BreakerConfig, logger *zap.Logger) *Breaker {
	failures := config.Failures
	if failures == 0 {
		failures = 1
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Timeout:     config.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Breaker{cb: cb}
}

// Execute runs the handshake through the breaker.
func (b *Breaker) Execute(handshake func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, handshake()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBackoff, err)
	}
	return err
}

// State exposes the breaker state for diagnostics.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
