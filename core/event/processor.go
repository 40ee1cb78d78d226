package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type eventSource interface {
	Events() <-chan []byte
}

type fallbackHandlerFunc func(context.Context, Event) error

// Processor manages event handlers and coordinates event processing.
type Processor struct {
	handlers        map[string][]Handler
	eventBus        eventSource
	fallbackHandler fallbackHandlerFunc
	mu              sync.RWMutex

	shutdownTimeout       time.Duration
	maxConcurrentHandlers int
	staleThreshold        time.Duration
	stuckThreshold        int32
	logger                *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	semaphore chan struct{}

	eventsProcessed atomic.Int64
	eventsFailed    atomic.Int64
	activeEvents    atomic.Int32
	lastActivityAt  atomic.Int64
}

// ProcessorStats provides observability metrics for monitoring and debugging.
type ProcessorStats struct {
	EventsProcessed int64
	EventsFailed    int64
	ActiveEvents    int32
	IsRunning       bool
	LastActivityAt  time.Time
}

// NewProcessor creates a new event processor with the given options.
//
// Example:
//
//	processor := event.NewProcessor(
//	    event.WithEventSource(bus),
//	    event.WithHandler(handler1, handler2),
//	)
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		handlers:        make(map[string][]Handler),
		shutdownTimeout: 30 * time.Second,
		staleThreshold:  5 * time.Minute,
		stuckThreshold:  1000,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.maxConcurrentHandlers > 0 {
		p.semaphore = make(chan struct{}, p.maxConcurrentHandlers)
	}

	return p
}

// Start begins processing events from the event source. It blocks until the context
// is cancelled or the source is closed. Use Run() for the errgroup pattern.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return ErrProcessorAlreadyStarted
	}

	if p.eventBus == nil {
		p.mu.Unlock()
		return ErrEventSourceNil
	}

	if len(p.handlers) == 0 && p.fallbackHandler == nil {
		p.mu.Unlock()
		return ErrNoHandlers
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	ctx = p.ctx
	p.mu.Unlock()

	p.lastActivityAt.Store(time.Now().Unix())
	p.logger.InfoContext(ctx, "event processor started",
		slog.Int("handler_count", len(p.handlers)))

	events := p.eventBus.Events()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("event processor stopping")
			return ctx.Err()
		case data, ok := <-events:
			if !ok {
				p.logger.Info("event source closed")
				return nil
			}

			var evt Event
			if err := json.Unmarshal(data, &evt); err != nil {
				p.eventsFailed.Add(1)
				p.logger.ErrorContext(ctx, "failed to unmarshal event",
					slog.String("error", err.Error()))
				continue
			}

			if err := p.processHandlers(ctx, evt); err != nil && !errors.Is(err, ErrNoHandlers) {
				p.logger.ErrorContext(ctx, "failed to process event",
					slog.String("event_id", evt.ID),
					slog.String("event_name", evt.Name),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Stop gracefully shuts down the processor with a timeout.
// Returns an error if the shutdown timeout is exceeded.
func (p *Processor) Stop() error {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		return ErrProcessorNotStarted
	}

	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	cancel()

	p.logger.Info("event processor stopping, waiting for active handlers to complete",
		slog.Duration("timeout", p.shutdownTimeout))

	ctx, ctxCancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("event processor stopped cleanly")
		return nil
	case <-ctx.Done():
		p.logger.Warn("event processor shutdown timeout exceeded - some handlers may be abandoned",
			slog.Duration("timeout", p.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", p.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (p *Processor) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- p.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = p.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if err == nil {
				// Source closed; release the cancel func so the processor reads as stopped.
				_ = p.Stop()
			}
			return err
		}
	}
}

func (p *Processor) processHandlers(ctx context.Context, evt Event) error {
	p.mu.RLock()
	handlers := p.handlers[evt.Name]
	fallback := p.fallbackHandler
	p.mu.RUnlock()

	if len(handlers) == 0 {
		if fallback == nil {
			return ErrNoHandlers
		}
		return p.spawn(ctx, evt, "fallback", func(hctx context.Context) error {
			return fallback(hctx, evt)
		})
	}

	for _, h := range handlers {
		handler := h
		if err := p.spawn(ctx, evt, handler.EventName(), func(hctx context.Context) error {
			return handler.Handle(hctx, evt.Payload)
		}); err != nil {
			return err
		}
	}

	return nil
}

// spawn runs fn in its own goroutine, honouring the concurrency limit.
func (p *Processor) spawn(ctx context.Context, evt Event, handlerName string, fn func(context.Context) error) error {
	if p.semaphore != nil {
		select {
		case p.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.wg.Add(1)
	p.activeEvents.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.activeEvents.Add(-1)
		if p.semaphore != nil {
			defer func() { <-p.semaphore }()
		}

		hctx := WithStartProcessingTime(WithEventMeta(ctx, evt), time.Now())

		defer func() {
			if r := recover(); r != nil {
				p.eventsFailed.Add(1)
				p.logger.ErrorContext(hctx, "event handler panicked",
					slog.String("event_id", evt.ID),
					slog.String("event_name", evt.Name),
					slog.String("handler", handlerName),
					slog.Any("panic", r))
			}
		}()

		start := time.Now()

		if err := fn(hctx); err != nil {
			p.eventsFailed.Add(1)
			p.logger.ErrorContext(hctx, "event handler failed",
				slog.String("event_id", evt.ID),
				slog.String("event_name", evt.Name),
				slog.String("handler", handlerName),
				slog.Duration("duration", time.Since(start)),
				slog.String("error", err.Error()))
		} else {
			p.eventsProcessed.Add(1)
			p.logger.DebugContext(hctx, "event handler completed",
				slog.String("event_id", evt.ID),
				slog.String("event_name", evt.Name),
				slog.String("handler", handlerName),
				slog.Duration("duration", time.Since(start)))
		}

		p.lastActivityAt.Store(time.Now().Unix())
	}()

	return nil
}

// Stats returns current processor statistics for observability and monitoring.
func (p *Processor) Stats() ProcessorStats {
	p.mu.RLock()
	isRunning := p.cancel != nil
	p.mu.RUnlock()

	lastActivity := p.lastActivityAt.Load()
	var lastActivityTime time.Time
	if lastActivity > 0 {
		lastActivityTime = time.Unix(lastActivity, 0)
	}

	return ProcessorStats{
		EventsProcessed: p.eventsProcessed.Load(),
		EventsFailed:    p.eventsFailed.Load(),
		ActiveEvents:    p.activeEvents.Load(),
		IsRunning:       isRunning,
		LastActivityAt:  lastActivityTime,
	}
}

// Healthcheck validates that the processor is operational.
// A processor is unhealthy when stopped, when too many handlers are in flight, or when
// handlers are in flight but nothing completed within the stale threshold.
func (p *Processor) Healthcheck(ctx context.Context) error {
	stats := p.Stats()

	if !stats.IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrProcessorNotRunning)
	}

	if stats.ActiveEvents >= p.stuckThreshold {
		return errors.Join(ErrHealthcheckFailed, ErrProcessorStuck)
	}

	if stats.ActiveEvents > 0 && !stats.LastActivityAt.IsZero() &&
		time.Since(stats.LastActivityAt) > p.staleThreshold {
		return errors.Join(ErrHealthcheckFailed, ErrProcessorStale)
	}

	return nil
}
