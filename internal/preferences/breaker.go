package preferences

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnavailable is returned while the circuit breaker rejects calls.
var ErrUnavailable = errors.New("preferences: store unavailable")

// BreakerState represents the state of the circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout passes.
	BreakerOpen
	// BreakerHalfOpen lets a limited number of probe calls through.
	BreakerHalfOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for the circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int `mapstructure:"max_failures"`
	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
	// HalfOpenMaxCalls is the number of successful probes that close it
	// again, and the most probes allowed in flight at once.
	HalfOpenMaxCalls int `mapstructure:"half_open_max_calls"`
}

// DefaultBreakerConfig returns the default circuit breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker stops calling a failing preference backend for a while.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int // probes that succeeded while half-open
	probing   int // probes admitted while half-open and not yet recorded
	openedAt  time.Time
	config    BreakerConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker. Non-positive config
// fields fall back to DefaultBreakerConfig.
func NewCircuitBreaker(config BreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	defaults := DefaultBreakerConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = defaults.ResetTimeout
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = defaults.HalfOpenMaxCalls
	}
	return &CircuitBreaker{
		state:  BreakerClosed,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Allow reports whether a call may go through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.ResetTimeout {
			return false
		}
		cb.transitionTo(BreakerHalfOpen)
		cb.probing = 1
		return true
	case BreakerHalfOpen:
		if cb.successes+cb.probing >= cb.config.HalfOpenMaxCalls {
			return false
		}
		cb.probing++
		return true
	default:
		return true
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.release()
		cb.successes++
		if cb.successes >= cb.config.HalfOpenMaxCalls {
			cb.transitionTo(BreakerClosed)
		}
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.logger.Debug().Err(err).Int("failure_count", cb.failures).Msg("Preference store call failed")

	switch cb.state {
	case BreakerClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.transitionTo(BreakerOpen)
		}
	case BreakerHalfOpen:
		// Any failed probe reopens the circuit
		cb.transitionTo(BreakerOpen)
	}
}

// RecordIgnored releases a call admitted by Allow whose outcome says nothing
// about the backend.
func (cb *CircuitBreaker) RecordIgnored() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerHalfOpen {
		cb.release()
	}
}

func (cb *CircuitBreaker) release() {
	if cb.probing > 0 {
		cb.probing--
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transitionTo(state BreakerState) {
	from := cb.state
	cb.state = state
	cb.successes = 0
	cb.probing = 0
	switch state {
	case BreakerOpen:
		cb.openedAt = cb.now()
	case BreakerClosed:
		cb.failures = 0
	}

	event := cb.logger.Info()
	if state == BreakerOpen {
		event = cb.logger.Warn().Int("failure_count", cb.failures).Dur("reset_timeout", cb.config.ResetTimeout)
	}
	event.Str("from", from.String()).Str("to", state.String()).Msg("Preference store circuit breaker changed state")
}

// GuardedStore wraps a Store with a circuit breaker. While the breaker is
// open every call fails with ErrUnavailable without reaching the backend.
type GuardedStore struct {
	store   Store
	breaker *CircuitBreaker
}

// NewGuardedStore wraps store with breaker.
func NewGuardedStore(store Store, breaker *CircuitBreaker) *GuardedStore {
	return &GuardedStore{store: store, breaker: breaker}
}

// Load implements Store.
func (g *GuardedStore) Load(ctx context.Context, userID string) (*Preferences, error) {
	var prefs *Preferences
	err := g.guard(func() error {
		var err error
		prefs, err = g.store.Load(ctx, userID)
		return err
	})
	return prefs, err
}

// Save implements Store.
func (g *GuardedStore) Save(ctx context.Context, userID string, prefs *Preferences) error {
	return g.guard(func() error {
		return g.store.Save(ctx, userID, prefs)
	})
}

// Update implements Store.
func (g *GuardedStore) Update(ctx context.Context, userID string, mutate func(*Preferences)) (*Preferences, error) {
	var prefs *Preferences
	err := g.guard(func() error {
		var err error
		prefs, err = g.store.Update(ctx, userID, mutate)
		return err
	})
	return prefs, err
}

// Delete implements Store.
func (g *GuardedStore) Delete(ctx context.Context, userID string) error {
	return g.guard(func() error {
		return g.store.Delete(ctx, userID)
	})
}

// Ping checks the wrapped store directly, bypassing the breaker, when it
// supports pinging.
func (g *GuardedStore) Ping(ctx context.Context) error {
	if p, ok := g.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Breaker returns the circuit breaker guarding the store.
func (g *GuardedStore) Breaker() *CircuitBreaker {
	return g.breaker
}

func (g *GuardedStore) guard(call func() error) error {
	if !g.breaker.Allow() {
		return ErrUnavailable
	}
	err := call()
	switch {
	case err == nil:
		g.breaker.RecordSuccess()
	case countsAsFailure(err):
		g.breaker.RecordFailure(err)
	default:
		g.breaker.RecordIgnored()
	}
	return err
}

// countsAsFailure reports whether err trips the breaker. Empty user IDs,
// cancelled contexts and lost update races do not.
func countsAsFailure(err error) bool {
	return !errors.Is(err, ErrEmptyUserID) && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrConflict)
}
