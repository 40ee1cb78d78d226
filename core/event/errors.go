package event

import "errors"

var (
	// ErrNoHandlers is returned when no handlers are registered for an event.
	ErrNoHandlers = errors.New("no handlers registered for event")

	// ErrProcessorAlreadyStarted is returned when attempting to start a processor that is already running.
	ErrProcessorAlreadyStarted = errors.New("processor already started")

	// ErrProcessorNotStarted is returned when attempting to stop a processor that is not running.
	ErrProcessorNotStarted = errors.New("processor not started")

	// ErrEventSourceNil is returned when the processor has no event source configured.
	ErrEventSourceNil = errors.New("event source cannot be nil")

	// ErrChannelBusClosed is returned when publishing to or closing a closed channel bus.
	ErrChannelBusClosed = errors.New("channel bus is closed")

	// ErrChannelBusSaturated is returned by ChannelBus.Healthcheck when the backlog reaches
	// the buffer size and publishers start to block.
	ErrChannelBusSaturated = errors.New("channel bus backlog is full")

	// ErrHealthcheckFailed is returned when the processor health check fails.
	ErrHealthcheckFailed = errors.New("healthcheck failed")

	// ErrProcessorNotRunning is returned by Healthcheck when the processor is stopped.
	ErrProcessorNotRunning = errors.New("processor not running")

	// ErrProcessorStale is returned when the processor has not handled events recently.
	ErrProcessorStale = errors.New("processor is stale - no recent activity")

	// ErrProcessorStuck is returned when too many handlers are active at once.
	ErrProcessorStuck = errors.New("processor may be stuck - too many active events")

	// ErrInvalidPayload is returned when a payload cannot be converted to the handler type.
	ErrInvalidPayload = errors.New("invalid payload type")
)
