// Package event carries broker and requester notifications to off-band consumers.
//
// Committed notifications are wrapped in an Event envelope (ID, Name, Payload,
// CreatedAt), marshaled to JSON and pushed onto a bus. A Processor reads the bus and
// dispatches every envelope to the handlers registered for its name. Names are derived
// from the payload type, so an OracleRequest payload is delivered to handlers created
// with NewHandlerFunc(func(ctx context.Context, req broker.OracleRequest) error).
//
// # Basic Usage
//
//	bus := event.NewChannelBus(event.WithBufferSize(100))
//	defer bus.Close()
//
//	publisher := event.NewPublisher(bus, event.WithPublisherLogger(log))
//
//	processor := event.NewProcessor(
//		event.WithEventSource(bus),
//		event.WithHandler(event.NewHandlerFunc(func(ctx context.Context, req broker.OracleRequest) error {
//			return node.Answer(ctx, req)
//		})),
//		event.WithProcessorLogger(log),
//	)
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(processor.Run(ctx))
//
// # External Buses
//
// Any type with Publish(ctx, []byte) error can back a Publisher, and any type with
// Events() <-chan []byte can feed a Processor. The kafka transport in
// integration/transport/kafka implements both.
//
// # Thread Safety
//
// Publisher, ChannelBus and Processor are safe for concurrent use. Handlers run in
// their own goroutines; WithMaxConcurrentHandlers bounds how many run at once.
package event
