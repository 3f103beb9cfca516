package indicator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/screener/pkg/core"
)

// Provider sources
const (
	SourceCoinGlass = "coinglass"
	SourceExchange  = "exchange"
	SourceNone      = "unavailable"
)

// Result is either a value tagged with the provider that produced it or
// unavailable with the errors of every provider tried
type Result[T any] struct {
	Value  T
	Source string
	Err    error
}

// Ok creates an available result
func Ok[T any](value T, source string) Result[T] {
	return Result[T]{Value: value, Source: source}
}

// Unavailable creates a result without value
func Unavailable[T any](err error) Result[T] {
	return Result[T]{Source: SourceNone, Err: err}
}

// Available reports whether a provider produced the value
func (r Result[T]) Available() bool {
	return r.Source != SourceNone && r.Source != ""
}

// Ptr returns a pointer to the value or nil when unavailable
func (r Result[T]) Ptr() *T {
	if !r.Available() {
		return nil
	}
	value := r.Value
	return &value
}

// Provider is one way of fetching an indicator
type Provider[T any] struct {
	Source string
	Fetch  func(ctx context.Context) (T, error)
}

// FirstSuccess tries providers in order and returns the first value produced.
// An error or a timeout moves on to the next provider.
func FirstSuccess[T any](ctx context.Context, timeout time.Duration, providers ...Provider[T]) Result[T] {
	var errs []error

	for _, provider := range providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		value, err := fetchWithTimeout(ctx, timeout, provider)
		if err == nil {
			return Ok(value, provider.Source)
		}
		errs = append(errs, fmt.Errorf("%s: %w", provider.Source, err))
	}

	return Unavailable[T](errors.Join(append([]error{core.ErrIndicatorUnavailable}, errs...)...))
}

func fetchWithTimeout[T any](ctx context.Context, timeout time.Duration, provider Provider[T]) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return provider.Fetch(ctx)
}

// String implements fmt.Stringer for logs
func (r Result[T]) String() string {
	if !r.Available() {
		return SourceNone
	}
	return fmt.Sprintf("%v (%s)", r.Value, r.Source)
}
