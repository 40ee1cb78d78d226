package event_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/arbiter/core/event"
)

func TestProcessor_StartValidation(t *testing.T) {
	t.Parallel()

	t.Run("no event source", func(t *testing.T) {
		t.Parallel()
		p := event.NewProcessor(event.WithHandler(event.NewHandlerFunc(func(ctx context.Context, evt RequestLogged) error {
			return nil
		})))
		require.ErrorIs(t, p.Start(context.Background()), event.ErrEventSourceNil)
	})

	t.Run("no handlers", func(t *testing.T) {
		t.Parallel()
		bus := event.NewChannelBus()
		defer bus.Close()
		p := event.NewProcessor(event.WithEventSource(bus))
		require.ErrorIs(t, p.Start(context.Background()), event.ErrNoHandlers)
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()
		p := event.NewProcessor()
		require.ErrorIs(t, p.Stop(), event.ErrProcessorNotStarted)
	})
}

func TestProcessor_DispatchesByName(t *testing.T) {
	t.Parallel()

	bus := event.NewChannelBus()
	publisher := event.NewPublisher(bus)

	received := make(chan RequestLogged, 1)
	counted := make(chan CounterBumped, 1)

	p := event.NewProcessor(
		event.WithEventSource(bus),
		event.WithHandler(
			event.NewHandlerFunc(func(ctx context.Context, evt RequestLogged) error {
				assert.NotEmpty(t, event.EventID(ctx))
				assert.Equal(t, "RequestLogged", event.EventName(ctx))
				assert.False(t, event.EventTime(ctx).IsZero())
				assert.False(t, event.StartProcessingTime(ctx).IsZero())
				received <- evt
				return nil
			}),
			event.NewHandlerFunc(func(ctx context.Context, evt CounterBumped) error {
				counted <- evt
				return nil
			}),
		),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx)() }()

	require.NoError(t, publisher.Publish(ctx, RequestLogged{ID: "1", Message: "m"}))
	require.NoError(t, publisher.Publish(ctx, CounterBumped{Count: 2}))

	select {
	case evt := <-received:
		assert.Equal(t, RequestLogged{ID: "1", Message: "m"}, evt)
	case <-time.After(time.Second):
		t.Fatal("RequestLogged not delivered")
	}
	select {
	case evt := <-counted:
		assert.Equal(t, 2, evt.Count)
	case <-time.After(time.Second):
		t.Fatal("CounterBumped not delivered")
	}

	require.Eventually(t, func() bool {
		return p.Stats().EventsProcessed == 2
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Healthcheck(ctx))

	cancel()
	require.NoError(t, <-done)
	assert.False(t, p.Stats().IsRunning)
	require.ErrorIs(t, p.Healthcheck(context.Background()), event.ErrProcessorNotRunning)
}

func TestProcessor_FallbackAndFailures(t *testing.T) {
	t.Parallel()

	bus := event.NewChannelBus()
	var fallbackNames sync.Map

	p := event.NewProcessor(
		event.WithEventSource(bus),
		event.WithHandler(event.NewHandlerFunc(func(ctx context.Context, evt RequestLogged) error {
			if evt.ID == "panic" {
				panic("boom")
			}
			return assert.AnError
		})),
		event.WithFallbackHandler(func(ctx context.Context, evt event.Event) error {
			fallbackNames.Store(evt.Name, true)
			return nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)()

	publisher := event.NewPublisher(bus)
	require.NoError(t, publisher.Publish(ctx, RequestLogged{ID: "err"}))
	require.NoError(t, publisher.Publish(ctx, RequestLogged{ID: "panic"}))
	require.NoError(t, publisher.Publish(ctx, CounterBumped{Count: 1}))
	require.NoError(t, bus.Publish(ctx, []byte("not json")))

	require.Eventually(t, func() bool {
		stats := p.Stats()
		return stats.EventsFailed == 3 && stats.EventsProcessed == 1
	}, time.Second, 5*time.Millisecond)

	_, ok := fallbackNames.Load("CounterBumped")
	assert.True(t, ok)
}

func TestProcessor_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	bus := event.NewChannelBus()
	var active, peak atomic.Int32
	release := make(chan struct{})

	p := event.NewProcessor(
		event.WithEventSource(bus),
		event.WithMaxConcurrentHandlers(2),
		event.WithHandler(event.NewHandlerFunc(func(ctx context.Context, evt CounterBumped) error {
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			active.Add(-1)
			return nil
		})),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)()

	for i := range 5 {
		data, err := json.Marshal(event.NewEvent(CounterBumped{Count: i}))
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, data))
	}

	require.Eventually(t, func() bool { return active.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	require.Eventually(t, func() bool { return p.Stats().EventsProcessed == 5 }, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcessor_SourceClosed(t *testing.T) {
	t.Parallel()

	bus := event.NewChannelBus()
	p := event.NewProcessor(
		event.WithEventSource(bus),
		event.WithHandler(event.NewHandlerFunc(func(ctx context.Context, evt RequestLogged) error { return nil })),
	)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background())() }()

	require.Eventually(t, func() bool { return p.Stats().IsRunning }, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, p.Start(context.Background()), event.ErrProcessorAlreadyStarted)
	require.NoError(t, bus.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("processor did not exit after source closed")
	}
	assert.False(t, p.Stats().IsRunning)
}
