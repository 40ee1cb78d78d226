package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/arbiter/core/logger"
)

// DefaultChannelBufferSize is the default backlog of the in-memory bus.
const DefaultChannelBufferSize = 100

// ChannelBus is the in-process discovery channel: the ledger's Publisher writes
// notifications into it and the fulfiller's Processor reads them back.
// Publish blocks while the backlog is full, which stalls the committing operation
// until a consumer catches up.
type ChannelBus struct {
	ch     chan []byte
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// ChannelBusOption configures a ChannelBus.
type ChannelBusOption func(*ChannelBus)

// WithBufferSize sets the backlog size.
func WithBufferSize(size int) ChannelBusOption {
	return func(b *ChannelBus) {
		if size > 0 {
			b.ch = make(chan []byte, size)
		}
	}
}

// WithChannelLogger sets the logger.
func WithChannelLogger(log *slog.Logger) ChannelBusOption {
	return func(b *ChannelBus) {
		if log != nil {
			b.logger = log
		}
	}
}

// NewChannelBus creates an in-memory bus.
func NewChannelBus(opts ...ChannelBusOption) *ChannelBus {
	b := &ChannelBus{
		ch:     make(chan []byte, DefaultChannelBufferSize),
		logger: logger.Discard(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Publish queues an encoded event. The event name is taken from ctx metadata when the
// caller is a Publisher.
func (b *ChannelBus) Publish(ctx context.Context, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.WarnContext(ctx, "notification dropped, bus closed",
			logger.Event(EventName(ctx)))
		return ErrChannelBusClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.ch <- data:
		b.logger.DebugContext(ctx, "notification queued",
			logger.Event(EventName(ctx)),
			slog.Int("backlog", len(b.ch)))
		return nil
	}
}

// Events returns the channel the processor consumes.
func (b *ChannelBus) Events() <-chan []byte {
	return b.ch
}

// Backlog reports how many notifications wait for a consumer.
func (b *ChannelBus) Backlog() int {
	return len(b.ch)
}

// Healthcheck fails once the backlog is full.
func (b *ChannelBus) Healthcheck(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrChannelBusClosed
	}
	if n := len(b.ch); n == cap(b.ch) {
		return fmt.Errorf("%w: %d queued", ErrChannelBusSaturated, n)
	}
	return nil
}

// Run provides errgroup compatibility: it closes the bus when ctx is cancelled, which
// lets a Processor reading from it drain and stop.
func (b *ChannelBus) Run(ctx context.Context) func() error {
	return func() error {
		<-ctx.Done()
		if err := b.Close(); err != nil && !errors.Is(err, ErrChannelBusClosed) {
			return err
		}
		return nil
	}
}

// Close closes the channel. Publish fails afterwards; a second Close returns
// ErrChannelBusClosed.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrChannelBusClosed
	}

	b.closed = true
	close(b.ch)
	b.logger.Info("channel bus closed", slog.Int("undelivered", len(b.ch)))
	return nil
}
