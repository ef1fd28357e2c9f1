// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package gateway

import (
	"context"
	"errors"

	"github.com/ManuGH/xmlembed/internal/resilience"
)

// WithBreaker routes every primitive through cb. While the breaker is open
// calls fail fast with resilience.ErrCircuitOpen without reaching p.
func WithBreaker(p Port, cb *resilience.CircuitBreaker) Port {
	return decorator{next: p, wrap: func(ctx context.Context, _ Primitive, input string, call func(context.Context, string) (string, error)) (string, error) {
		var out string
		err := cb.Execute(func() error {
			var callErr error
			out, callErr = call(ctx, input)
			return callErr
		})
		return out, err
	}}
}

// CountsAsBackendFailure reports whether err should trip the gateway breaker.
// Cancellation is the caller's doing, not the backend's.
func CountsAsBackendFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
