package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ErrAllFailed is returned when no backend in a [FallbackGroup] served the
// call, either because it failed or because its breaker was open.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig is applied to the breaker of every backend in a group.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type backend[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a preferred backend and its fallbacks, tried in the
// order they were added. Each has its own circuit breaker. Add every
// fallback before sharing the group.
type FallbackGroup[T any] struct {
	cfg      FallbackConfig
	backends []backend[T]
	served   atomic.Int32
}

// NewFallbackGroup returns a group whose first backend is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.AddFallback(primaryName, primary)
	return g
}

// AddFallback appends a backend tried after those already added.
func (g *FallbackGroup[T]) AddFallback(name string, value T) {
	bc := g.cfg.CircuitBreaker
	bc.Name = name
	g.backends = append(g.backends, backend[T]{name: name, value: value, breaker: NewCircuitBreaker(bc)})
}

// Names lists the backends in try order.
func (g *FallbackGroup[T]) Names() []string {
	out := make([]string, 0, len(g.backends))
	for _, b := range g.backends {
		out = append(out, b.name)
	}
	return out
}

// LastServed names the backend that served the most recent successful call.
func (g *FallbackGroup[T]) LastServed() string {
	return g.backends[g.served.Load()].name
}

func (g *FallbackGroup[T]) primary() T { return g.backends[0].value }

// ExecuteWithResult calls fn on each backend in turn until one succeeds.
// Cancellation stops the walk at once. When every backend fails the error
// wraps [ErrAllFailed] and each backend's error.
func ExecuteWithResult[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for i := range g.backends {
		b := &g.backends[i]
		var res R
		err := b.breaker.Execute(func() error {
			var err error
			res, err = fn(b.value)
			return err
		})
		switch {
		case err == nil:
			if prev := g.served.Swap(int32(i)); prev != int32(i) {
				slog.Info("translation backend switched", "from", g.backends[prev].name, "to", b.name)
			}
			return res, nil
		case isCancellation(err):
			return zero, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("backend skipped, circuit open", "provider", b.name)
		default:
			slog.Warn("backend failed, trying next", "provider", b.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
