// Package ledger is the execution substrate the broker and requesters run on.
//
// A Ledger gives every operation the guarantees a transactional chain would: operations
// are totally ordered (one mutex per ledger), each one is all-or-nothing, and the
// notifications it emits become visible only after it commits.
//
// An operation runs inside Run. Work that can fail durably (a registry transaction) is
// enlisted as a Participant; in-memory state changes are staged with Apply and only run
// once every participant committed; notifications are staged with Emit. A nested Run
// on the same ledger (a fulfillment callback that chains a new request) joins the outer
// unit, so the whole chain commits or rolls back together.
//
//	err := l.Run(ctx, func(ctx context.Context) error {
//		unit := ledger.MustUnit(ctx)
//		unit.Apply(func() { a.amount = value })
//		unit.Emit(a.addr, ChainlinkFulfilled{ID: id})
//		return nil
//	})
//
// Committed notifications are appended to the Journal (ordered, per emitter) and handed
// to the configured publisher.
package ledger
