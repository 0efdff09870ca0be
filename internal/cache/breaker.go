package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker is rejecting cache calls.
var ErrCircuitOpen = errors.New("cache circuit open")

// BreakerConfig configures a BreakerStore.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a trial call.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the breaker settings used for Redis.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "ranking-cache",
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// lookup carries a Get result through the breaker.
type lookup struct {
	value []byte
	ok    bool
}

// BreakerStore wraps a Store with a circuit breaker so an unavailable
// backend is skipped instead of costing every request a timeout.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[lookup]
}

// NewBreakerStore wraps next with a circuit breaker.
func NewBreakerStore(next Store, cfg BreakerConfig) *BreakerStore {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	threshold := cfg.FailureThreshold

	cb := gobreaker.NewCircuitBreaker[lookup](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller giving up is not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("cache circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BreakerStore{next: next, cb: cb}
}

// Get looks up key through the breaker.
func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := s.cb.Execute(func() (lookup, error) {
		value, ok, err := s.next.Get(ctx, key)
		return lookup{value: value, ok: ok}, err
	})
	if err != nil {
		return nil, false, breakerErr(err)
	}
	return res.value, res.ok, nil
}

// Set stores value through the breaker.
func (s *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (lookup, error) {
		return lookup{}, s.next.Set(ctx, key, value, ttl)
	})
	if err != nil {
		return breakerErr(err)
	}
	return nil
}

// State returns the breaker state: "closed", "half-open" or "open".
func (s *BreakerStore) State() string {
	return s.cb.State().String()
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return err
}
