package event

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// eventBus is anything that can carry marshaled events.
type eventBus interface {
	Publish(ctx context.Context, data []byte) error
}

// Publisher wraps payloads into Events and pushes them onto a bus.
//
// Example:
//
//	publisher := event.NewPublisher(bus, event.WithPublisherLogger(logger))
//	err := publisher.Publish(ctx, broker.RequestFulfilled{ID: id})
type Publisher struct {
	bus    eventBus
	logger *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger for the publisher.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher creates a new event publisher on top of the given bus.
func NewPublisher(bus eventBus, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		bus:    bus,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Publish marshals the payload into an Event envelope and hands it to the bus.
func (p *Publisher) Publish(ctx context.Context, payload any) error {
	evt := NewEvent(payload)

	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal event",
			slog.String("event_name", evt.Name),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to marshal event %s: %w", evt.Name, err)
	}

	if err := p.bus.Publish(WithEventMeta(ctx, evt), data); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event_id", evt.ID),
			slog.String("event_name", evt.Name),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to publish event %s: %w", evt.Name, err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("event_id", evt.ID),
		slog.String("event_name", evt.Name))

	return nil
}
