// Package kafka carries event envelopes over a Kafka topic.
//
// Bus satisfies both sides of core/event: event.NewPublisher accepts it as a bus and
// event.WithEventSource accepts it as a source. Run must be started for Events to
// deliver anything.
//
//	bus, err := kafka.New(cfg)
//	if err != nil {
//		return err
//	}
//	defer bus.Close()
//
//	g.Go(bus.Run(ctx))
//	g.Go(event.NewProcessor(event.WithEventSource(bus), event.WithHandler(h)).Run(ctx))
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/dmitrymomot/arbiter/core/logger"
)

var (
	ErrInvalidConfig = errors.New("kafka: invalid configuration")
	ErrBusClosed     = errors.New("kafka: bus closed")
)

// Config holds broker and topic settings.
type Config struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic      string   `env:"KAFKA_TOPIC" envDefault:"arbiter.events"`
	GroupID    string   `env:"KAFKA_GROUP_ID" envDefault:"arbiter"`
	BufferSize int      `env:"KAFKA_BUFFER_SIZE" envDefault:"100"`
}

// Bus publishes to and consumes from one topic.
type Bus struct {
	writer *kafka.Writer
	reader *kafka.Reader
	events chan []byte
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bus) {
		if log != nil {
			b.logger = log
		}
	}
}

// New creates a bus. Connections are opened lazily by the writer and reader.
func New(cfg Config, opts ...Option) (*Bus, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, ErrInvalidConfig
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}

	b := &Bus{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		events: make(chan []byte, cfg.BufferSize),
		logger: logger.Discard(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Publish writes one message.
func (b *Bus) Publish(ctx context.Context, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	if err := b.writer.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}
	return nil
}

// Events returns the channel fed by Run.
func (b *Bus) Events() <-chan []byte {
	return b.events
}

// Run consumes the topic until ctx is cancelled. Offsets are committed after a message
// was handed to the events channel. The channel is closed when Run returns.
func (b *Bus) Run(ctx context.Context) func() error {
	return func() error {
		defer close(b.events)

		for {
			msg, err := b.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("kafka: failed to fetch message: %w", err)
			}

			select {
			case b.events <- msg.Value:
			case <-ctx.Done():
				return nil
			}

			if err := b.reader.CommitMessages(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				b.logger.ErrorContext(ctx, "failed to commit offset",
					logger.Component("kafka"),
					slog.Int64("offset", msg.Offset),
					logger.Error(err))
			}
		}
	}
}

// Close releases the writer and reader.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.closed = true
	b.mu.Unlock()

	return errors.Join(b.writer.Close(), b.reader.Close())
}
