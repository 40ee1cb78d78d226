package event

import (
	"context"
	"time"
)

// Decorator wraps an event handler function to add cross-cutting functionality.
type Decorator[T any] func(HandlerFunc[T]) HandlerFunc[T]

// ApplyDecorators applies a series of decorators to a handler function.
// The first decorator in the list becomes the outermost wrapper (executes first).
//
// Example:
//
//	handler := event.NewHandlerFunc(event.ApplyDecorators(
//	    func(ctx context.Context, req broker.OracleRequest) error {
//	        return node.HandleRequest(ctx, req)
//	    },
//	    event.WithTimeout[broker.OracleRequest](30*time.Second),
//	))
func ApplyDecorators[T any](fn HandlerFunc[T], decorators ...Decorator[T]) HandlerFunc[T] {
	for i := len(decorators) - 1; i >= 0; i-- {
		fn = decorators[i](fn)
	}
	return fn
}

// WithTimeout bounds the execution time of a handler.
// A non-positive timeout leaves the handler unchanged.
func WithTimeout[T any](timeout time.Duration) Decorator[T] {
	return func(next HandlerFunc[T]) HandlerFunc[T] {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, payload T) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, payload)
		}
	}
}
