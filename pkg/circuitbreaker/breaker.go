package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned instead of calling the protected function while the breaker is open
// or while the half-open probe budget is exhausted.
var ErrOpen = errors.New("circuit breaker open")

type Settings struct {
	Name string
	// MaxFailures consecutive failures trip the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
	// IsExpected reports errors that are part of the normal contract (e.g. not found)
	// and must not count as failures.
	IsExpected func(error) bool
	// OnStateChange is called on every transition.
	OnStateChange func(name, from, to string)
}

type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func New(s Settings) *Breaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (s.IsExpected != nil && s.IsExpected(err))
		},
	}
	if s.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			s.OnStateChange(name, from.String(), to.String())
		}
	}

	return &Breaker{
		name: s.Name,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Do runs fn through the breaker. Results are passed out by the closure.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrOpen, b.name)
	}
	return err
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}
