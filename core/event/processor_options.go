package event

import (
	"context"
	"log/slog"
	"time"
)

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithHandler registers one or more handlers with the processor.
// Multiple handlers can be registered for the same event type.
func WithHandler(handlers ...Handler) ProcessorOption {
	return func(p *Processor) {
		for _, h := range handlers {
			eventName := h.EventName()
			p.handlers[eventName] = append(p.handlers[eventName], h)
		}
	}
}

// WithEventSource sets the event source for the processor to pull events from.
func WithEventSource(source eventSource) ProcessorOption {
	return func(p *Processor) {
		if source != nil {
			p.eventBus = source
		}
	}
}

// WithShutdownTimeout configures maximum wait time for active handlers during shutdown.
func WithShutdownTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.shutdownTimeout = d
		}
	}
}

// WithMaxConcurrentHandlers limits the number of handlers that can execute concurrently.
// Set to 0 (default) for unlimited.
func WithMaxConcurrentHandlers(max int) ProcessorOption {
	return func(p *Processor) {
		if max >= 0 {
			p.maxConcurrentHandlers = max
		}
	}
}

// WithStaleThreshold configures the duration after which a processor with in-flight
// handlers and no completions is considered stale. Default is 5 minutes.
func WithStaleThreshold(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.staleThreshold = d
		}
	}
}

// WithStuckThreshold configures the number of active events that marks the processor
// as stuck in health checks. Default is 1000.
func WithStuckThreshold(threshold int32) ProcessorOption {
	return func(p *Processor) {
		if threshold > 0 {
			p.stuckThreshold = threshold
		}
	}
}

// WithProcessorLogger configures structured logging for processor operations.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFallbackHandler sets a handler for events with no registered handlers.
func WithFallbackHandler(fn func(context.Context, Event) error) ProcessorOption {
	return func(p *Processor) {
		if fn != nil {
			p.fallbackHandler = fn
		}
	}
}
