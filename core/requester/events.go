package requester

import "github.com/dmitrymomot/arbiter/core/broker"

// ChainlinkRequested is emitted for every request the arbiter registers.
type ChainlinkRequested struct {
	ID   broker.RequestID `json:"id"`
	Slot Slot             `json:"slot"`
}

// ChainlinkFulfilled is emitted when a fulfillment is accepted.
type ChainlinkFulfilled struct {
	ID   broker.RequestID `json:"id"`
	Slot Slot             `json:"slot"`
}

// FollowUpRequested is emitted when a value fulfillment chains the receipt request.
type FollowUpRequested struct {
	ID       broker.RequestID `json:"id"`
	Previous broker.RequestID `json:"previous"`
}
