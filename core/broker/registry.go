package broker

import (
	"context"
	"slices"
)

// Registry stores pending requests and remembers every id it ever accepted.
//
// Writes go through a RegistryTx. The broker opens at most one transaction per ledger
// unit and enlists it, so a chained registration shares the fulfillment's transaction.
type Registry interface {
	Begin(ctx context.Context) (RegistryTx, error)
	// Get returns a live pending request or ErrUnknownRequest.
	Get(ctx context.Context, id RequestID) (PendingRequest, error)
	// Pending returns live requests ordered by sequence.
	Pending(ctx context.Context) ([]PendingRequest, error)
	// LastSeq returns the highest sequence ever committed, pending or retired, or zero.
	LastSeq(ctx context.Context) (uint64, error)
}

// RegistryTx is a registry write transaction.
type RegistryTx interface {
	// Insert stores a new pending request. It fails with ErrDuplicateRequest if the id
	// was ever issued, pending or retired.
	Insert(ctx context.Context, req PendingRequest) error
	// Take removes a live request and retires its id, or fails with ErrUnknownRequest.
	Take(ctx context.Context, id RequestID) (PendingRequest, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// SortBySeq orders requests by registration sequence.
func SortBySeq(reqs []PendingRequest) {
	slices.SortFunc(reqs, func(a, b PendingRequest) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
}
