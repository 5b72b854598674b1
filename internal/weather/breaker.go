package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// Fetcher is anything that can fetch a Report for a city
type Fetcher interface {
	Fetch(ctx context.Context, city string) (Report, error)
}

// BreakerClient guards a Fetcher with a circuit breaker. Open-state rejections
// are ordinary errors, so callers retry them like any transport failure.
type BreakerClient struct {
	cb      *gobreaker.CircuitBreaker
	wrapped Fetcher
}

// NewBreakerClient trips after maxFailures consecutive failures and probes
// again after timeout.
func NewBreakerClient(name string, wrapped Fetcher, maxFailures uint32, timeout time.Duration) *BreakerClient {
	if maxFailures == 0 {
		maxFailures = 1
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// a missing credential or a bad city name says nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || IsConfigError(err) || IsClientError(err)
		},
	}
	return &BreakerClient{
		cb:      gobreaker.NewCircuitBreaker(settings),
		wrapped: wrapped,
	}
}

// Fetch runs the wrapped Fetch through the breaker
func (b *BreakerClient) Fetch(ctx context.Context, city string) (Report, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.wrapped.Fetch(ctx, city)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Report{}, fmt.Errorf("%s unavailable: %w", b.cb.Name(), err)
		}
		return Report{}, err
	}

	report, ok := result.(Report)
	if !ok {
		return Report{}, fmt.Errorf("%s returned unexpected result %T", b.cb.Name(), result)
	}
	return report, nil
}

// State exposes the breaker state for logging
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}
