package broker

import "github.com/dmitrymomot/arbiter/core/ledger"

// OracleRequest announces a newly registered request to off-band fulfillers.
type OracleRequest struct {
	ID        RequestID      `json:"id"`
	Requester ledger.Address `json:"requester"`
	Selector  string         `json:"selector"`
	Spec      string         `json:"spec"`
	Data      []byte         `json:"data,omitempty"`
	Seq       uint64         `json:"seq"`
}

// RequestFulfilled is emitted once the requester accepted a fulfillment.
type RequestFulfilled struct {
	ID        RequestID      `json:"id"`
	Requester ledger.Address `json:"requester"`
}

// AuthorizationChanged is emitted when the owner grants or revokes fulfiller rights.
type AuthorizationChanged struct {
	Principal ledger.Address `json:"principal"`
	Allowed   bool           `json:"allowed"`
}
