// Package broker correlates asynchronous requests with their fulfillments.
//
// Requesters attached to a Broker register requests; each request gets a fresh unique
// id, is stored in a Registry as pending and is announced with an OracleRequest
// notification so an off-band fulfiller can pick it up. A principal in the broker's
// authorization set later submits Fulfill(id, data); the broker atomically takes the
// pending record and invokes the requester's callback with the data.
//
// Every operation runs as a ledger unit. A callback that registers a follow-up request
// joins the fulfillment's unit, so removal of the pending record, the callback's state
// changes, the chained registration and all notifications commit together. A failing
// callback leaves the id pending and the fulfillment can be retried.
//
//	l := ledger.New()
//	b, err := broker.New(l, "0xoracle", owner)
//	if err != nil {
//		return err
//	}
//	if err := b.Attach(requesterAddr, requester); err != nil {
//		return err
//	}
//	if err := b.SetAuthorization(ctx, owner, node, true); err != nil {
//		return err
//	}
//
//	id, err := b.Register(ctx, requesterAddr, broker.Request{Selector: "fulfill", Spec: "value"})
//	// ... the node observes OracleRequest{ID: id} and answers:
//	err = b.Fulfill(ctx, node, id, data)
//
// Ids are never reused: a fulfilled id is retired and a second Fulfill fails with
// ErrUnknownRequest. Registry implementations must keep retired ids.
package broker
